package portfolio

import (
	"github.com/shopspring/decimal"
)

// CashTicker is the synthetic ticker valued at exactly one currency unit.
// It is never queried from an upstream source.
const CashTicker = "Cash"

// Asset is one holding of the portfolio file.
type Asset struct {
	Ticker          string
	Type            string
	Account         string
	Quantity        decimal.Decimal
	AlternateSymbol string
}

// IsCash reports whether the asset is the synthetic cash position.
func (a Asset) IsCash() bool {
	return a.Ticker == CashTicker
}

// RoutesToSecondary reports whether the asset is priced by the real-time
// source through its alternate symbol instead of by ticker.
func (a Asset) RoutesToSecondary() bool {
	return a.AlternateSymbol != ""
}

// HasCash reports whether any asset is the cash position.
func HasCash(assets []Asset) bool {
	for _, a := range assets {
		if a.IsCash() {
			return true
		}
	}
	return false
}
