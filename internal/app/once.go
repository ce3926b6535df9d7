package app

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"portfolio-watch/internal/alerting"
	"portfolio-watch/internal/service"
	"portfolio-watch/internal/storage"
)

// Once runs a single valuation and prints its report.
func (a *App) Once(ctx context.Context, opts OnceOptions) (service.Report, error) {
	var store storage.DailyLogStore
	if !opts.NoPersist {
		s, closeStore, err := a.openStore(ctx)
		if err != nil {
			return service.Report{}, err
		}
		if closeStore != nil {
			defer closeStore()
		}
		store = s
	}

	var notifier alerting.Notifier
	if !opts.NoNotify {
		notifier = a.newNotifier()
	}

	target := opts.Date
	if target.IsZero() {
		target = storage.DayOf(time.Now())
	}
	// Past dates cannot be answered by the live source.
	historical := target.Before(storage.DayOf(time.Now()))

	report, err := a.newService(store, notifier, historical).Run(ctx, target)
	if err != nil {
		return report, err
	}
	a.printReport(report)
	return report, nil
}

func (a *App) printReport(r service.Report) {
	currency := a.Config.Alerting.Currency
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Run\t%s\n", r.RunID)
	fmt.Fprintf(writer, "Date\t%s\n", r.Date.UTC().Format(time.DateOnly))
	fmt.Fprintf(writer, "Total\t%s\n", alerting.FormatAmount(r.Total, currency))
	fmt.Fprintf(writer, "Band\t%s to %s\n",
		alerting.FormatAmount(r.Band.Min.Round(0).IntPart(), currency),
		alerting.FormatAmount(r.Band.Max.Round(0).IntPart(), currency))
	fmt.Fprintf(writer, "Status\t%s\n", r.Status)
	fmt.Fprintf(writer, "Persisted\t%s\n", outcome(r.Persisted, r.PersistErr))
	if r.Status.Breached() {
		fmt.Fprintf(writer, "Alert\t%s\n", outcome(r.Notified, r.NotifyErr))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(writer, "Warning\t%s\n", sanitizeInline(w.String()))
	}
	writer.Flush()
}

func outcome(done bool, err error) string {
	switch {
	case err != nil:
		return "failed: " + sanitizeInline(err.Error())
	case done:
		return "yes"
	default:
		return "skipped"
	}
}
