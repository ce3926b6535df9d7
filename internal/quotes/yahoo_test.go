package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

const chartFixture = `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"VTI"},
"timestamp":[1746538200,1746624600,1746711000],
"indicators":{"quote":[{"close":[281.1,283.25,null]}]}}],"error":null}}`

func TestYahooFetchSeries(t *testing.T) {
	var gotPath, gotInterval, gotPeriod1 string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotInterval = r.URL.Query().Get("interval")
		gotPeriod1 = r.URL.Query().Get("period1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	from := time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)

	series, err := y.FetchSeries(context.Background(), "VTI", from, to, IntervalDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/v8/finance/chart/VTI" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotInterval != "1d" {
		t.Fatalf("interval should be 1d, got %s", gotInterval)
	}
	if gotPeriod1 != "1746230400" {
		t.Fatalf("period1 should be unix seconds of from, got %s", gotPeriod1)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(series))
	}
	if series[1].Close == nil || !series[1].Close.Equal(decimal.RequireFromString("283.25")) {
		t.Fatalf("second close should be 283.25, got %v", series[1].Close)
	}
	if series[2].Close != nil {
		t.Fatalf("null close should decode to nil")
	}
}

func TestYahooFetchSeriesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := y.FetchSeries(context.Background(), "NOPE", time.Now(), time.Now(), IntervalDaily)
	if err == nil {
		t.Fatal("404 should return an error")
	}
	if !strings.Contains(err.Error(), "delisted") {
		t.Fatalf("error should carry the upstream description: %v", err)
	}
}

func TestYahooFetchSeriesEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[],"error":null}}`))
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL}, noopLogger())
	series, err := y.FetchSeries(context.Background(), "VTI", time.Now(), time.Now(), IntervalDaily)
	if err != nil {
		t.Fatalf("empty result is not an error: %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("expected no bars, got %d", len(series))
	}
}
