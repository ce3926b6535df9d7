package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the bar granularity requested from a series source.
type Interval string

// IntervalDaily requests one bar per trading day.
const IntervalDaily Interval = "1d"

// Quote is one bar of a historical series. Close is nil when the upstream
// returned the bar without a closing value.
type Quote struct {
	Date  time.Time
	Close *decimal.Decimal
}

// SeriesFetcher retrieves a historical daily series for one symbol.
type SeriesFetcher interface {
	Name() string
	FetchSeries(ctx context.Context, symbol string, period1, period2 time.Time, interval Interval) ([]Quote, error)
}

// RealtimeFetcher retrieves live quotes for a batch of symbols in one call.
// Symbols the upstream does not know are absent from the returned map.
type RealtimeFetcher interface {
	Name() string
	FetchRealtime(ctx context.Context, symbols []string) (map[string]RealtimeQuote, error)
}

// RealtimeQuote is a live quote as returned upstream. The price is kept raw
// so a malformed value only invalidates its own symbol.
type RealtimeQuote struct {
	Symbol      string
	DisplayName string
	Currency    string
	RawPrice    json.RawMessage
}

var errMissingPrice = errors.New("price field missing")

// Price parses the raw price field.
func (q RealtimeQuote) Price() (decimal.Decimal, error) {
	raw := strings.TrimSpace(string(q.RawPrice))
	if raw == "" || raw == "null" {
		return decimal.Decimal{}, errMissingPrice
	}
	var price decimal.Decimal
	if err := price.UnmarshalJSON([]byte(raw)); err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed price %s: %w", raw, err)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative price %s", price.String())
	}
	return price, nil
}
