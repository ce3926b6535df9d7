package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portfolio-watch/internal/alerting"
	"portfolio-watch/internal/config"
	"portfolio-watch/internal/logging"
	"portfolio-watch/internal/portfolio"
	"portfolio-watch/internal/storage"
)

// PortfolioLoader returns the current asset list and threshold band. It is
// called once per run so edits to the portfolio file apply without restart.
type PortfolioLoader func() (*config.Portfolio, error)

// Quoter resolves prices for a set of assets.
type Quoter interface {
	Quote(ctx context.Context, assets []portfolio.Asset, target time.Time) portfolio.QuoteResult
}

// Options tune the service.
type Options struct {
	Currency string
	LockKey  int64
}

// Report describes one valuation run. PersistErr and NotifyErr are
// recorded for inspection; they never fail the run.
type Report struct {
	RunID      string
	Target     time.Time
	Date       time.Time
	AsOf       *time.Time
	Total      int64
	Status     portfolio.ThresholdStatus
	Band       portfolio.ThresholdBand
	Warnings   []portfolio.Warning
	Persisted  bool
	PersistErr error
	Notified   bool
	NotifyErr  error
}

// Service orchestrates quoting, valuation, persistence, and alerting.
type Service struct {
	load     PortfolioLoader
	quoter   Quoter
	store    storage.DailyLogStore
	notifier alerting.Notifier
	locker   storage.AdvisoryLocker
	opts     Options
	logger   zerolog.Logger
}

// New constructs the valuation service. store and notifier may be nil to
// disable persistence or alerting.
func New(load PortfolioLoader, quoter Quoter, store storage.DailyLogStore, notifier alerting.Notifier, opts Options, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}

	return &Service{
		load:     load,
		quoter:   quoter,
		store:    store,
		notifier: notifier,
		locker:   locker,
		opts:     opts,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// Tick adapts Run to the scheduler. When another process holds the
// advisory lock the tick is skipped.
func (s *Service) Tick(ctx context.Context, day time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("day", day).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.Run(ctx, day)
	return err
}

// Run values the portfolio for target. Only an invalid portfolio file is
// returned as an error.
func (s *Service) Run(ctx context.Context, target time.Time) (Report, error) {
	logger, runID := logging.WithRun(s.logger)
	report := Report{RunID: runID, Target: target}

	pf, err := s.load()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load portfolio")
		return report, err
	}
	report.Band = pf.Threshold

	quoted := s.quoter.Quote(ctx, pf.Assets, target)
	valuation := quoted.Value(pf.Assets)
	for _, w := range valuation.Warnings {
		logger.Warn().Str("kind", string(w.Kind)).Str("ticker", w.Ticker).Msg(w.Message)
	}

	report.Total = valuation.Total
	report.AsOf = valuation.AsOf
	report.Status = portfolio.Evaluate(valuation.Total, pf.Threshold)
	report.Warnings = append(append([]portfolio.Warning(nil), quoted.Warnings...), valuation.Warnings...)
	report.Date = target
	if valuation.AsOf != nil {
		report.Date = *valuation.AsOf
	}

	logger.Info().
		Time("date", report.Date).
		Int64("total", report.Total).
		Str("status", string(report.Status)).
		Int("warnings", len(report.Warnings)).
		Msg("portfolio valued")

	if s.store != nil {
		row := storage.NewDailyLog(report.Date, report.Total, report.Status, Notes(report.Warnings))
		if err := s.store.UpsertDailyLog(ctx, row); err != nil {
			report.PersistErr = err
			logger.Error().Err(err).Time("day", row.Day).Msg("failed to upsert daily log")
		} else {
			report.Persisted = true
		}
	}

	if s.notifier != nil && report.Status.Breached() {
		note := alerting.Notification{
			Status:   report.Status,
			Total:    report.Total,
			Date:     report.Date,
			Band:     pf.Threshold,
			Currency: s.opts.Currency,
			Warnings: len(report.Warnings),
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			report.NotifyErr = err
			logger.Error().Err(err).Msg("failed to dispatch alert")
		} else {
			report.Notified = true
		}
	}

	return report, nil
}

// Notes summarises warnings for the persisted row, e.g.
// "quote_source_warning=2 valuation_warning=1". Empty when there are none.
func Notes(warnings []portfolio.Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	counts := make(map[portfolio.WarningKind]int)
	for _, w := range warnings {
		counts[w.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, counts[portfolio.WarningKind(kind)]))
	}
	return strings.Join(parts, " ")
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.opts.LockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
