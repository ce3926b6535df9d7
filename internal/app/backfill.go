package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-watch/internal/storage"
)

// Backfill values every weekday in [From, To) from historical closes. It
// never sends alerts.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	start := storage.DayOf(opts.From)
	end := storage.DayOf(opts.To)
	if !start.Before(end) {
		return errors.New("backfill range is empty; check --from/--to")
	}

	var store storage.DailyLogStore
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing is written")
	} else {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			return errors.New("database not configured; cannot backfill")
		}
		if closeStore != nil {
			defer closeStore()
		}
		store = s
	}

	svc := a.newService(store, nil, true)

	processed := 0
	failed := 0
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !isTradingDay(day) {
			continue
		}

		report, err := svc.Run(ctx, day)
		if err != nil {
			return err
		}
		if report.PersistErr != nil {
			failed++
			continue
		}
		processed++
		a.Logger.Info().
			Time("day", day).
			Time("date", report.Date).
			Int64("total", report.Total).
			Str("status", string(report.Status)).
			Msg("day backfilled")
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("backfill finished")
	if failed > 0 {
		return fmt.Errorf("%d day(s) failed to persist; check the log", failed)
	}
	return nil
}

func isTradingDay(day time.Time) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}
