package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	money "github.com/Rhymond/go-money"
	"github.com/rs/zerolog"

	"portfolio-watch/internal/portfolio"
)

// Notification is the alert context for one breached valuation.
type Notification struct {
	Status    portfolio.ThresholdStatus
	Total     int64
	Date      time.Time
	Band      portfolio.ThresholdBand
	Currency  string
	Warnings  int
	Simulated bool
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, note Notification) error
}

// Dispatcher fans a breach out to every configured channel. With no channel
// configured it only logs the alert.
type Dispatcher struct {
	channels []Notifier
	fallback Notifier
	logger   zerolog.Logger
}

// NewDispatcher builds a dispatcher over channels. Nil channels are ignored.
func NewDispatcher(logger zerolog.Logger, channels ...Notifier) *Dispatcher {
	active := make([]Notifier, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			active = append(active, ch)
		}
	}
	return &Dispatcher{
		channels: active,
		fallback: NewLogNotifier(logger),
		logger:   logger.With().Str("component", "alert_dispatcher").Logger(),
	}
}

// Name identifies the dispatcher.
func (d *Dispatcher) Name() string { return "dispatcher" }

// Channels returns the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Notify is a no-op for an ok status. Every channel is attempted; their
// errors are joined.
func (d *Dispatcher) Notify(ctx context.Context, note Notification) error {
	if !note.Status.Breached() {
		return nil
	}
	if len(d.channels) == 0 {
		return d.fallback.Notify(ctx, note)
	}

	var errs []error
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, note); err != nil {
			d.logger.Error().Err(err).Str("channel", ch.Name()).Msg("failed to dispatch alert")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FormatAmount renders a whole-unit amount in currency, e.g. "$75,000.00".
func FormatAmount(amount int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = money.USD
	}
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%d %s", amount, code)
	}
	return money.New(amount*pow10(cur.Fraction), code).Display()
}

func pow10(n int) int64 {
	out := int64(1)
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}

func renderSubject(note Notification) string {
	prefix := ""
	if note.Simulated {
		prefix = "[Simulated] "
	}
	return fmt.Sprintf("%sPortfolio %s threshold: %s", prefix, note.Status, FormatAmount(note.Total, note.Currency))
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Simulated {
		builder.WriteString("[Simulated alert]\n")
	}
	builder.WriteString("[Portfolio Threshold Alert]\n")
	builder.WriteString(fmt.Sprintf("Date: %s\n", note.Date.UTC().Format(time.DateOnly)))
	builder.WriteString(fmt.Sprintf("Status: %s\n", strings.ToUpper(string(note.Status))))
	builder.WriteString(fmt.Sprintf("Total value: %s\n", FormatAmount(note.Total, note.Currency)))
	lower := note.Band.Min.Round(0).IntPart()
	upper := note.Band.Max.Round(0).IntPart()
	builder.WriteString(fmt.Sprintf("Band: %s to %s\n", FormatAmount(lower, note.Currency), FormatAmount(upper, note.Currency)))
	switch note.Status {
	case portfolio.StatusAbove:
		builder.WriteString(fmt.Sprintf("Over the upper bound by %s\n", FormatAmount(note.Total-upper, note.Currency)))
	case portfolio.StatusBelow:
		builder.WriteString(fmt.Sprintf("Under the lower bound by %s\n", FormatAmount(lower-note.Total, note.Currency)))
	}
	if note.Warnings > 0 {
		builder.WriteString(fmt.Sprintf("Warnings: %d asset(s) or source(s) could not be priced\n", note.Warnings))
	}
	return builder.String()
}

var _ Notifier = (*Dispatcher)(nil)
