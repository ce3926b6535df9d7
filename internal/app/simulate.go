package app

import (
	"context"
	"fmt"
	"time"

	"portfolio-watch/internal/alerting"
	"portfolio-watch/internal/portfolio"
)

// SimulateAlert evaluates total against the configured band and sends the
// resulting alert marked as simulated. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, total int64) error {
	pf, err := a.loadPortfolio()
	if err != nil {
		return err
	}

	status := portfolio.Evaluate(total, pf.Threshold)
	if !status.Breached() {
		return fmt.Errorf("total %d is inside the band [%s, %s]; nothing to alert", total, pf.Threshold.Min, pf.Threshold.Max)
	}

	dispatcher := a.newNotifier()
	note := alerting.Notification{
		Status:    status,
		Total:     total,
		Date:      time.Now().UTC(),
		Band:      pf.Threshold,
		Currency:  a.Config.Alerting.Currency,
		Simulated: true,
	}
	if err := dispatcher.Notify(ctx, note); err != nil {
		return fmt.Errorf("simulated alert: %w", err)
	}

	channels := dispatcher.Channels()
	if len(channels) == 0 {
		channels = []string{"log"}
	}
	fmt.Fprintf(a.Out, "simulated %s alert sent via %v\n", status, channels)
	return nil
}
