package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"portfolio-watch/internal/alerting"
)

// Show prints the most recent daily rows.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show daily log")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rows, err := store.ListRecent(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(a.Out, "no valuations found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Day\tTotal\tStatus\tUpdated (UTC)\tNotes")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			row.Day.Format(time.DateOnly),
			alerting.FormatAmount(row.TotalValue, a.Config.Alerting.Currency),
			row.Status,
			row.UpdatedAt.UTC().Format(time.RFC3339),
			sanitizeInline(row.Notes),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
