package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PriceMap maps a ticker to its resolved unit price.
//
// Set overwrites any previous entry. Merge applies the argument after the
// receiver, so on a shared ticker the argument's price wins.
type PriceMap map[string]decimal.Decimal

// NewPriceMap returns an empty map.
func NewPriceMap() PriceMap {
	return make(PriceMap)
}

// Set stores price for ticker, replacing any existing value.
func (m PriceMap) Set(ticker string, price decimal.Decimal) {
	m[ticker] = price
}

// Get returns the price for ticker and whether it was resolved.
func (m PriceMap) Get(ticker string) (decimal.Decimal, bool) {
	p, ok := m[ticker]
	return p, ok
}

// Has reports whether ticker has a resolved price.
func (m PriceMap) Has(ticker string) bool {
	_, ok := m[ticker]
	return ok
}

// Len returns the number of resolved tickers.
func (m PriceMap) Len() int {
	return len(m)
}

// Merge copies every entry of other into m, overwriting shared tickers.
func (m PriceMap) Merge(other PriceMap) {
	for ticker, price := range other {
		m[ticker] = price
	}
}

// Tickers returns the resolved tickers in lexical order.
func (m PriceMap) Tickers() []string {
	out := make([]string, 0, len(m))
	for ticker := range m {
		out = append(out, ticker)
	}
	sort.Strings(out)
	return out
}
