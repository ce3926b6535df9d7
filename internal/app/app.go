package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"portfolio-watch/internal/alerting"
	"portfolio-watch/internal/config"
	"portfolio-watch/internal/quotes"
	"portfolio-watch/internal/scheduler"
	"portfolio-watch/internal/service"
	"portfolio-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command output meant for the terminal.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newAggregator(primaryOnly bool) *quotes.Aggregator {
	q := a.Config.Quotes
	primary := quotes.NewYahoo(quotes.YahooOptions{
		BaseURL:   q.Primary.BaseURL,
		Timeout:   q.Primary.RequestTimeout,
		UserAgent: q.Primary.UserAgent,
	}, a.Logger)

	var secondary quotes.RealtimeFetcher
	if q.Secondary.Enabled && !primaryOnly {
		secondary = quotes.NewMSN(quotes.MSNOptions{
			BaseURL:   q.Secondary.BaseURL,
			APIKey:    q.Secondary.APIKey,
			Timeout:   q.Secondary.RequestTimeout,
			UserAgent: q.Secondary.UserAgent,
		}, a.Logger)
	}

	return quotes.NewAggregator(primary, secondary, quotes.Options{
		SourceTimeout:      q.SourceTimeout,
		Retries:            q.Retries,
		RetryDelay:         q.RetryDelay,
		PrimaryConcurrency: q.PrimaryConcurrency,
		PrimaryOnly:        primaryOnly,
	}, a.Logger)
}

// newNotifier builds the dispatcher over every enabled channel. A channel
// that is enabled but unusable is logged and left out.
func (a *App) newNotifier() *alerting.Dispatcher {
	cfg := a.Config.Alerting
	var channels []alerting.Notifier

	if cfg.Email.Enabled {
		email, err := alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			TLS:      cfg.Email.TLS,
			Timeout:  cfg.Timeout,
		}, a.Logger)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("email alerts disabled")
		} else {
			channels = append(channels, email)
		}
	}

	if cfg.Telegram.Enabled {
		tg := cfg.Telegram
		channels = append(channels, alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, cfg.Timeout, a.Logger))
	}

	if len(channels) == 0 {
		a.Logger.Info().Msg("no alert channel configured; alerts are logged only")
	}
	return alerting.NewDispatcher(a.Logger, channels...)
}

func (a *App) openStore(ctx context.Context) (storage.DailyLogStore, func(), error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", a.Config.Database.Driver, err)
	}
	if store == nil {
		return nil, nil, nil
	}

	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close store")
		}
	}
	return store, closer, nil
}

func (a *App) loadPortfolio() (*config.Portfolio, error) {
	return config.LoadPortfolio(a.Config.Portfolio.Path)
}

func (a *App) newService(store storage.DailyLogStore, notifier alerting.Notifier, primaryOnly bool) *service.Service {
	return service.New(a.loadPortfolio, a.newAggregator(primaryOnly), store, notifier, service.Options{
		Currency: a.Config.Alerting.Currency,
		LockKey:  a.Config.Scheduler.AdvisoryLockKey,
	}, a.Logger)
}

// Run executes the long-running valuation scheduler.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Fail fast on a broken portfolio file instead of at the first tick.
	if _, err := a.loadPortfolio(); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.driver is none; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	loc, err := time.LoadLocation(a.Config.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("load scheduler timezone: %w", err)
	}
	sched, err := scheduler.New(scheduler.Options{
		Spec:       a.Config.Scheduler.Cron,
		Location:   loc,
		RunOnStart: a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	svc := a.newService(store, a.newNotifier(), false)

	a.Logger.Info().Msg("starting valuation service")
	err = sched.Run(ctx, svc.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("valuation service stopped")
	return nil
}

// OnceOptions configure a single valuation.
type OnceOptions struct {
	Date time.Time
	// NoPersist and NoNotify skip the respective sinks.
	NoPersist bool
	NoNotify  bool
}

// ExportOptions hold parameters for exporting the daily log.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From   time.Time
	To     time.Time
	DryRun bool
}
