package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-watch/internal/config"
	"portfolio-watch/internal/portfolio"
	"portfolio-watch/internal/storage"
)

const vtiChart = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"VTI"},
"timestamp":[1746538200,1746711000],
"indicators":{"quote":[{"close":[690.5,700]}]}}],"error":null}}`

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/VTI" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(vtiChart))
	}))
	t.Cleanup(srv.Close)

	portfolioPath := filepath.Join(dir, "portfolio.json")
	require.NoError(t, os.WriteFile(portfolioPath, []byte(`{
		"threshold": {"min": 80000, "max": 150000},
		"assets": [
			{"ticker": "VTI", "type": "stock", "account": "brokerage", "qty": 100},
			{"ticker": "Cash", "type": "cash", "account": "bank", "qty": 5000}
		]
	}`), 0o600))

	cfg := &config.Config{
		Database:  config.DatabaseConfig{Driver: "sqlite", SQLitePath: filepath.Join(dir, "db", "portfolio.sqlite")},
		Portfolio: config.PortfolioConfig{Path: portfolioPath},
		Quotes: config.QuotesConfig{
			SourceTimeout: 5 * time.Second,
			Primary:       config.PrimaryConfig{BaseURL: srv.URL, RequestTimeout: 2 * time.Second},
		},
		Alerting: config.AlertingConfig{Currency: "USD"},
		Export:   config.ExportConfig{MaxDataPoints: 100},
	}

	a := NewApp(cfg, zerolog.Nop())
	out := &bytes.Buffer{}
	a.Out = out
	return a, out
}

func TestOnceValuesPersistsAndShows(t *testing.T) {
	a, out := newTestApp(t)
	ctx := context.Background()

	report, err := a.Once(ctx, OnceOptions{Date: time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, int64(75000), report.Total)
	assert.Equal(t, portfolio.StatusBelow, report.Status)
	assert.True(t, report.Persisted)
	assert.True(t, report.Notified, "with no channel configured the alert is logged")
	assert.Contains(t, out.String(), "$75,000.00")
	assert.Contains(t, out.String(), "2025-05-08")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{Limit: 5}))
	assert.Contains(t, out.String(), "2025-05-08")
	assert.Contains(t, out.String(), "below")
}

func TestExportCSV(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	_, err := a.Once(ctx, OnceOptions{Date: time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC), NoNotify: true})
	require.NoError(t, err)

	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	csvPath := filepath.Join(t.TempDir(), "out", "log.csv")
	require.NoError(t, a.Export(ctx, ExportOptions{From: &from, To: &to, CSVPath: csvPath}))

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "day,date,period,portfolio_value,threshold"))
	assert.True(t, strings.HasPrefix(lines[1], "2025-05-08,"))
	assert.Contains(t, lines[1], ",75000,below,")
}

func TestExportRequiresTarget(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Error(t, a.Export(context.Background(), ExportOptions{}))
}

func TestSimulateAlertRejectsOKTotal(t *testing.T) {
	a, out := newTestApp(t)
	assert.Error(t, a.SimulateAlert(context.Background(), 100000))

	require.NoError(t, a.SimulateAlert(context.Background(), 200000))
	assert.Contains(t, out.String(), "simulated above alert sent via [log]")
}

func TestExportWindowDefaults(t *testing.T) {
	now := time.Date(2025, 5, 8, 15, 0, 0, 0, time.UTC)
	from, to := exportWindow(ExportOptions{MaxPoints: 30}, now)
	assert.Equal(t, time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC), to)
	assert.Equal(t, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), from)
}

func TestDownsampleRowsKeepsEnds(t *testing.T) {
	rows := make([]storage.DailyLog, 10)
	for i := range rows {
		rows[i].TotalValue = int64(i)
	}
	out := downsampleRows(rows, 4)
	require.Len(t, out, 4)
	assert.Equal(t, int64(0), out[0].TotalValue)
	assert.Equal(t, int64(9), out[3].TotalValue)
	assert.Len(t, downsampleRows(rows, 20), 10)
}

func TestIsTradingDay(t *testing.T) {
	assert.True(t, isTradingDay(time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)))
	assert.False(t, isTradingDay(time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)))
}
