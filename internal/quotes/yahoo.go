package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const yahooChartPath = "/v8/finance/chart/"

// YahooOptions parameterise the chart API fetcher.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Yahoo fetches daily closing series from the Yahoo Finance chart API.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewYahoo constructs the primary series fetcher.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "yahoo_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name identifies the source in warnings and logs.
func (y *Yahoo) Name() string { return "yahoo" }

// FetchSeries returns the bars between period1 and period2 in upstream order.
func (y *Yahoo) FetchSeries(ctx context.Context, symbol string, period1, period2 time.Time, interval Interval) ([]Quote, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if interval == "" {
		interval = IntervalDaily
	}

	query := url.Values{}
	query.Set("period1", strconv.FormatInt(period1.Unix(), 10))
	query.Set("period2", strconv.FormatInt(period2.Unix(), 10))
	query.Set("interval", string(interval))
	query.Set("events", "history")
	endpoint := y.baseURL + yahooChartPath + url.PathEscape(symbol) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "Mozilla/5.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart chartResponse
	decodeErr := json.Unmarshal(body, &chart)
	if chart.Chart.Error != nil && chart.Chart.Error.Description != "" {
		return nil, fmt.Errorf("yahoo api error (%d): %s", resp.StatusCode, chart.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode: %w", decodeErr)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	var closes []decimal.NullDecimal
	if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	series := make([]Quote, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		q := Quote{Date: time.Unix(ts, 0).UTC()}
		if i < len(closes) && closes[i].Valid {
			c := closes[i].Decimal
			q.Close = &c
		}
		series = append(series, q)
	}

	y.logger.Debug().Str("symbol", symbol).Int("bars", len(series)).Msg("series fetched")
	return series, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []decimal.NullDecimal `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var _ SeriesFetcher = (*Yahoo)(nil)
