package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"portfolio-watch/internal/portfolio"
)

const (
	// lookbackDays widens the series window so a weekend or holiday target
	// still resolves to the latest available close.
	lookbackDays  = 5
	lookaheadDays = 1
)

// Outcome summarises how a source call went.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomePartial Outcome = "partial"
	OutcomeOutage  Outcome = "outage"
)

// SourceResult is the typed result of querying one source. Err is set only
// when the source as a whole failed; Prices is then empty.
type SourceResult struct {
	Source   string
	Prices   portfolio.PriceMap
	AsOf     *time.Time
	Warnings []portfolio.Warning
	Err      error
}

// Outcome classifies the result.
func (r SourceResult) Outcome() Outcome {
	switch {
	case r.Err != nil:
		return OutcomeOutage
	case len(r.Warnings) > 0:
		return OutcomePartial
	default:
		return OutcomeOK
	}
}

// Options tune the aggregator.
type Options struct {
	SourceTimeout      time.Duration
	Retries            int
	RetryDelay         time.Duration
	PrimaryConcurrency int
	// PrimaryOnly routes every asset to the series source by ticker. Used
	// for past dates, which the real-time source cannot answer.
	PrimaryOnly bool
	Now         func() time.Time
}

// Aggregator merges both quote sources into one price map.
type Aggregator struct {
	primary   SeriesFetcher
	secondary RealtimeFetcher
	opts      Options
	logger    zerolog.Logger
}

// NewAggregator wires the two sources. secondary may be nil, in which case
// assets routed to it stay unresolved.
func NewAggregator(primary SeriesFetcher, secondary RealtimeFetcher, opts Options, logger zerolog.Logger) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 20 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.PrimaryConcurrency <= 0 {
		opts.PrimaryConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		primary:   primary,
		secondary: secondary,
		opts:      opts,
		logger:    logger.With().Str("component", "quote_aggregator").Logger(),
	}
}

// routing is the de-duplicated query plan for one run.
type routing struct {
	tickers []string
	alts    []string
	// altTickers maps an alternate symbol back to every ticker using it.
	altTickers map[string][]string
	cash       bool
}

func (a *Aggregator) plan(assets []portfolio.Asset) routing {
	r := routing{altTickers: make(map[string][]string)}
	seenTicker := make(map[string]bool)
	seenPair := make(map[string]bool)

	for _, asset := range assets {
		if asset.IsCash() {
			r.cash = true
			continue
		}
		if asset.RoutesToSecondary() && !a.opts.PrimaryOnly {
			alt := asset.AlternateSymbol
			if _, ok := r.altTickers[alt]; !ok {
				r.alts = append(r.alts, alt)
			}
			pair := alt + "\x00" + asset.Ticker
			if !seenPair[pair] {
				seenPair[pair] = true
				r.altTickers[alt] = append(r.altTickers[alt], asset.Ticker)
			}
			continue
		}
		if !seenTicker[asset.Ticker] {
			seenTicker[asset.Ticker] = true
			r.tickers = append(r.tickers, asset.Ticker)
		}
	}
	return r
}

// Quote resolves prices for assets as of target. It never fails: source
// problems surface as warnings and missing entries.
func (a *Aggregator) Quote(ctx context.Context, assets []portfolio.Asset, target time.Time) portfolio.QuoteResult {
	r := a.plan(assets)

	var primaryRes, secondaryRes SourceResult
	var g errgroup.Group
	g.Go(func() error {
		primaryRes = a.queryPrimary(ctx, r.tickers, target)
		return nil
	})
	g.Go(func() error {
		secondaryRes = a.querySecondary(ctx, r.alts, r.altTickers)
		return nil
	})
	_ = g.Wait()

	prices := portfolio.NewPriceMap()
	prices.Merge(primaryRes.Prices)
	prices.Merge(secondaryRes.Prices)
	if r.cash {
		prices.Set(portfolio.CashTicker, decimal.NewFromInt(1))
	}

	var asOf *time.Time
	switch {
	case secondaryRes.Prices.Len() > 0 && secondaryRes.AsOf != nil:
		asOf = secondaryRes.AsOf
	case primaryRes.AsOf != nil:
		asOf = primaryRes.AsOf
	}

	warnings := make([]portfolio.Warning, 0, len(primaryRes.Warnings)+len(secondaryRes.Warnings))
	warnings = append(warnings, primaryRes.Warnings...)
	warnings = append(warnings, secondaryRes.Warnings...)

	a.logger.Info().
		Int("primary_symbols", len(r.tickers)).
		Str("primary_outcome", string(primaryRes.Outcome())).
		Int("secondary_symbols", len(r.alts)).
		Str("secondary_outcome", string(secondaryRes.Outcome())).
		Int("resolved", prices.Len()).
		Msg("quotes merged")

	return portfolio.QuoteResult{Prices: prices, AsOf: asOf, Warnings: warnings}
}

func (a *Aggregator) queryPrimary(ctx context.Context, tickers []string, target time.Time) SourceResult {
	res := SourceResult{Prices: portfolio.NewPriceMap()}
	if a.primary == nil {
		res.Source = "primary"
		if len(tickers) > 0 {
			res.Err = errors.New("primary source not configured")
			res.Warnings = append(res.Warnings, a.outage(res.Source, res.Err))
		}
		return res
	}
	res.Source = a.primary.Name()
	if len(tickers) == 0 {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	defer cancel()

	day := calendarDay(target)
	period1 := day.AddDate(0, 0, -lookbackDays)
	period2 := day.AddDate(0, 0, lookaheadDays)

	// each goroutine owns one slot
	series := make([][]Quote, len(tickers))
	errs := make([]error, len(tickers))
	var g errgroup.Group
	g.SetLimit(a.opts.PrimaryConcurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			errs[i] = a.retry(ctx, func(ctx context.Context) error {
				var err error
				series[i], err = a.primary.FetchSeries(ctx, ticker, period1, period2, IntervalDaily)
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, ticker := range tickers {
		if errs[i] != nil {
			failed++
			res.Warnings = append(res.Warnings, a.symbolWarning(res.Source, ticker, ticker, errs[i].Error()))
			continue
		}
		quotes := series[i]
		if len(quotes) == 0 {
			res.Warnings = append(res.Warnings, a.symbolWarning(res.Source, ticker, ticker,
				fmt.Sprintf("no quotes found on %s", day.Format(time.DateOnly))))
			continue
		}
		last := quotes[len(quotes)-1]
		if last.Close == nil {
			res.Warnings = append(res.Warnings, a.symbolWarning(res.Source, ticker, ticker, "no close price in the last quote"))
			continue
		}
		if last.Close.IsNegative() {
			res.Warnings = append(res.Warnings, a.symbolWarning(res.Source, ticker, ticker, "negative close price"))
			continue
		}
		res.Prices.Set(ticker, *last.Close)
		if res.AsOf == nil {
			d := last.Date
			res.AsOf = &d
		}
	}

	if failed == len(tickers) {
		res.Err = fmt.Errorf("all %d symbol fetches failed: %w", failed, errors.Join(errs...))
		res.Warnings = append(res.Warnings, a.outage(res.Source, res.Err))
	}
	return res
}

func (a *Aggregator) querySecondary(ctx context.Context, alts []string, altTickers map[string][]string) SourceResult {
	res := SourceResult{Prices: portfolio.NewPriceMap()}
	if a.secondary == nil {
		res.Source = "secondary"
		if len(alts) > 0 {
			res.Err = errors.New("secondary source not configured")
			res.Warnings = append(res.Warnings, a.outage(res.Source, res.Err))
		}
		return res
	}
	res.Source = a.secondary.Name()
	if len(alts) == 0 {
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	defer cancel()

	var quotes map[string]RealtimeQuote
	err := a.retry(ctx, func(ctx context.Context) error {
		var err error
		quotes, err = a.secondary.FetchRealtime(ctx, alts)
		return err
	})
	if err != nil {
		res.Err = err
		res.Warnings = append(res.Warnings, a.outage(res.Source, err))
		return res
	}

	for _, alt := range alts {
		tickers := altTickers[alt]
		q, ok := quotes[alt]
		if !ok {
			for _, ticker := range tickers {
				res.Warnings = append(res.Warnings, a.symbolWarning(res.Source, alt, ticker, "symbol missing from response"))
			}
			continue
		}
		price, err := q.Price()
		if err != nil {
			for _, ticker := range tickers {
				res.Warnings = append(res.Warnings, a.symbolWarning(res.Source, alt, ticker, err.Error()))
			}
			continue
		}
		for _, ticker := range tickers {
			res.Prices.Set(ticker, price)
		}
	}

	if res.Prices.Len() > 0 {
		// live quotes carry no trade date, only today's
		today := calendarDay(a.opts.Now())
		res.AsOf = &today
	}
	return res
}

func (a *Aggregator) retry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= a.opts.Retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(a.opts.RetryDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (a *Aggregator) symbolWarning(source, symbol, ticker, msg string) portfolio.Warning {
	a.logger.Warn().Str("source", source).Str("symbol", symbol).Str("ticker", ticker).Msg(msg)
	return portfolio.Warning{
		Kind:    portfolio.WarnQuoteSource,
		Source:  source,
		Symbol:  symbol,
		Ticker:  ticker,
		Message: msg,
	}
}

func (a *Aggregator) outage(source string, err error) portfolio.Warning {
	a.logger.Error().Err(err).Str("source", source).Msg("quote source unavailable; continuing without it")
	return portfolio.Warning{
		Kind:    portfolio.WarnQuoteOutage,
		Source:  source,
		Message: err.Error(),
	}
}

func calendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
