package portfolio

import "fmt"

// WarningKind categorises a non-fatal issue raised during a run.
type WarningKind string

const (
	// WarnQuoteSource means a source could not resolve one symbol.
	WarnQuoteSource WarningKind = "quote_source_warning"
	// WarnQuoteOutage means a whole source call failed and contributed nothing.
	WarnQuoteOutage WarningKind = "quote_source_outage"
	// WarnValuation means an asset was left out of the total for lack of a price.
	WarnValuation WarningKind = "valuation_warning"
)

// Warning is a recoverable problem. Runs carry them alongside their results
// so callers can inspect them without scraping logs.
type Warning struct {
	Kind    WarningKind
	Source  string
	Symbol  string
	Ticker  string
	Message string
}

func (w Warning) String() string {
	switch {
	case w.Symbol != "" && w.Source != "":
		return fmt.Sprintf("%s [%s] %s: %s", w.Kind, w.Source, w.Symbol, w.Message)
	case w.Ticker != "":
		return fmt.Sprintf("%s %s: %s", w.Kind, w.Ticker, w.Message)
	case w.Source != "":
		return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Source, w.Message)
	default:
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
}

// CountWarnings returns how many warnings of kind are present.
func CountWarnings(warnings []Warning, kind WarningKind) int {
	n := 0
	for _, w := range warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
