package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asset(ticker string, qty float64) Asset {
	return Asset{Ticker: ticker, Type: "stock", Account: "brokerage", Quantity: decimal.NewFromFloat(qty)}
}

func prices(kv map[string]float64) PriceMap {
	m := NewPriceMap()
	for k, v := range kv {
		m.Set(k, decimal.NewFromFloat(v))
	}
	return m
}

func TestValueSingleAsset(t *testing.T) {
	res := Value([]Asset{asset("AAA", 10)}, prices(map[string]float64{"AAA": 100}))
	assert.Equal(t, int64(1000), res.Total)
	assert.Empty(t, res.Warnings)
}

func TestValueSkipsMissingPrice(t *testing.T) {
	res := Value([]Asset{asset("AAA", 10)}, NewPriceMap())
	assert.Equal(t, int64(0), res.Total)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnValuation, res.Warnings[0].Kind)
	assert.Equal(t, "AAA", res.Warnings[0].Ticker)
}

func TestValueMissingPriceDoesNotZeroTotal(t *testing.T) {
	assets := []Asset{asset("AAA", 10), asset("BBB", 3), asset("CCC", 2)}
	res := Value(assets, prices(map[string]float64{"AAA": 12.5, "CCC": 40}))
	assert.Equal(t, int64(205), res.Total)
	assert.Equal(t, 1, CountWarnings(res.Warnings, WarnValuation))
}

func TestValueSharedTickerAcrossAccounts(t *testing.T) {
	a := asset("VTI", 2)
	b := asset("VTI", 3)
	b.Account = "ira"
	res := Value([]Asset{a, b}, prices(map[string]float64{"VTI": 250}))
	assert.Equal(t, int64(1250), res.Total)
}

func TestRoundTotalHalfUp(t *testing.T) {
	cases := map[string]int64{
		"1000.5":  1001,
		"1000.49": 1000,
		"999.5":   1000,
		"0.5":     1,
		"-2.5":    -3,
	}
	for in, want := range cases {
		assert.Equal(t, want, RoundTotal(decimal.RequireFromString(in)), in)
	}
}

func TestValueRoundingAtBoundary(t *testing.T) {
	// 3 × 333.5 = 1000.5 rounds up to 1001, which crosses a max of 1001.
	res := Value([]Asset{asset("AAA", 3)}, prices(map[string]float64{"AAA": 333.5}))
	require.Equal(t, int64(1001), res.Total)
	band := ThresholdBand{Min: decimal.NewFromInt(0), Max: decimal.NewFromInt(1001)}
	assert.Equal(t, StatusAbove, Evaluate(res.Total, band))
}

func TestQuoteResultValueCarriesAsOf(t *testing.T) {
	day := time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC)
	q := QuoteResult{Prices: prices(map[string]float64{"Cash": 1}), AsOf: &day}
	res := q.Value([]Asset{asset("Cash", 500)})
	assert.Equal(t, int64(500), res.Total)
	require.NotNil(t, res.AsOf)
	assert.True(t, res.AsOf.Equal(day))
}

func TestPriceMapMergeOverwrites(t *testing.T) {
	primary := prices(map[string]float64{"X": 90, "Y": 10})
	secondary := prices(map[string]float64{"X": 95})
	primary.Merge(secondary)

	x, ok := primary.Get("X")
	require.True(t, ok)
	assert.True(t, x.Equal(decimal.NewFromInt(95)))
	assert.Equal(t, []string{"X", "Y"}, primary.Tickers())
}
