package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes the alert to the log only.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier builds the console fallback channel.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Name identifies the channel.
func (n *LogNotifier) Name() string { return "log" }

// Notify never fails.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Warn().
		Str("status", string(note.Status)).
		Int64("total", note.Total).
		Str("date", note.Date.UTC().Format("2006-01-02")).
		Bool("simulated", note.Simulated).
		Msg(renderSubject(note))
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
