package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"portfolio-watch/internal/portfolio"
	"portfolio-watch/internal/storage"
)

// Export renders the daily log as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	from, to := exportWindow(opts, time.Now())
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	rows, err := store.ListBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		a.Logger.Info().Msg("no valuations found for export window")
		return nil
	}

	downsampled := downsampleRows(rows, opts.MaxPoints)
	a.Logger.Info().Int("total", len(rows)).Int("exported", len(downsampled)).Msg("exporting daily log")

	if opts.CSVPath != "" {
		if err := writeRowsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		var band *portfolio.ThresholdBand
		if pf, err := a.loadPortfolio(); err != nil {
			a.Logger.Warn().Err(err).Msg("portfolio unreadable; chart drawn without threshold band")
		} else {
			band = &pf.Threshold
		}
		if err := writeRowsPNG(opts.PNGPath, downsampled, band); err != nil {
			return err
		}
	}

	return nil
}

// exportWindow resolves the [from, to) day range. Without --from the window
// reaches back one day per exported point.
func exportWindow(opts ExportOptions, now time.Time) (time.Time, time.Time) {
	to := storage.DayOf(now).AddDate(0, 0, 1)
	if opts.To != nil {
		to = storage.DayOf(*opts.To)
	}
	from := to.AddDate(0, 0, -opts.MaxPoints)
	if opts.From != nil {
		from = storage.DayOf(*opts.From)
	}
	return from, to
}

func downsampleRows(rows []storage.DailyLog, max int) []storage.DailyLog {
	if max <= 0 || len(rows) <= max {
		return rows
	}
	if max == 1 {
		return rows[len(rows)-1:]
	}

	result := make([]storage.DailyLog, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeRowsCSV(path string, rows []storage.DailyLog) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"day", "date", "period", "portfolio_value", "threshold", "notes", "updated_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Day.Format(time.DateOnly),
			row.Date.UTC().Format(time.RFC3339),
			row.Period,
			strconv.FormatInt(row.TotalValue, 10),
			string(row.Status),
			row.Notes,
			row.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRowsPNG(path string, rows []storage.DailyLog, band *portfolio.ThresholdBand) error {
	if len(rows) < 2 {
		return fmt.Errorf("need at least two valuations to draw a chart, have %d", len(rows))
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(rows))
	totals := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = row.Day
		totals[i] = float64(row.TotalValue)
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	series := []chart.Series{
		chart.TimeSeries{
			Name:    "Portfolio value",
			XValues: x,
			YValues: totals,
		},
	}
	if band != nil {
		series = append(series,
			bandLine("Lower bound", x, band.Min.InexactFloat64()),
			bandLine("Upper bound", x, band.Max.InexactFloat64()),
		)
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Value",
			ValueFormatter: amountFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func bandLine(name string, x []time.Time, level float64) chart.TimeSeries {
	y := make([]float64, len(x))
	for i := range y {
		y[i] = level
	}
	return chart.TimeSeries{
		Name:    name,
		XValues: x,
		YValues: y,
		Style: chart.Style{
			StrokeColor:     chart.ColorRed,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
