package portfolio

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteResult is the merged output of every quote source for one run.
type QuoteResult struct {
	Prices PriceMap
	// AsOf is the first date discovered while merging, not necessarily the
	// freshest one. Nil when no quote resolved.
	AsOf     *time.Time
	Warnings []Warning
}

// ValuationResult is the rounded portfolio total.
type ValuationResult struct {
	Total    int64
	AsOf     *time.Time
	Warnings []Warning
}

// Value sums quantity × price over assets. An asset whose ticker has no price
// is skipped, never counted as zero, and reported as a valuation warning.
func Value(assets []Asset, prices PriceMap) ValuationResult {
	sum := decimal.Zero
	var warnings []Warning
	for _, asset := range assets {
		price, ok := prices.Get(asset.Ticker)
		if !ok {
			warnings = append(warnings, Warning{
				Kind:    WarnValuation,
				Ticker:  asset.Ticker,
				Message: "price missing, asset skipped",
			})
			continue
		}
		sum = sum.Add(asset.Quantity.Mul(price))
	}
	return ValuationResult{Total: RoundTotal(sum), Warnings: warnings}
}

// Value values assets against the merged prices and carries the as-of date.
func (q QuoteResult) Value(assets []Asset) ValuationResult {
	res := Value(assets, q.Prices)
	res.AsOf = q.AsOf
	return res
}

// RoundTotal rounds to a whole currency unit, half away from zero
// (2.5 → 3, -2.5 → -3).
func RoundTotal(sum decimal.Decimal) int64 {
	return sum.Round(0).IntPart()
}
