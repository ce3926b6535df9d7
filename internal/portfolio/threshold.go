package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ThresholdStatus classifies a total against the configured band.
type ThresholdStatus string

const (
	StatusAbove ThresholdStatus = "above"
	StatusBelow ThresholdStatus = "below"
	StatusOK    ThresholdStatus = "ok"
)

// Breached reports whether the status should trigger a notification.
func (s ThresholdStatus) Breached() bool {
	return s == StatusAbove || s == StatusBelow
}

func (s ThresholdStatus) String() string {
	return string(s)
}

// ParseStatus converts a persisted status back to its typed value.
func ParseStatus(v string) (ThresholdStatus, error) {
	switch ThresholdStatus(v) {
	case StatusAbove, StatusBelow, StatusOK:
		return ThresholdStatus(v), nil
	}
	return "", fmt.Errorf("unknown threshold status %q", v)
}

// ThresholdBand is the [Min, Max] range considered ok. Min <= Max is checked
// when the portfolio file is loaded, not here.
type ThresholdBand struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Evaluate checks the upper bound first, so a total equal to both bounds of a
// degenerate band is above.
func Evaluate(total int64, band ThresholdBand) ThresholdStatus {
	t := decimal.NewFromInt(total)
	if t.GreaterThanOrEqual(band.Max) {
		return StatusAbove
	}
	if t.LessThanOrEqual(band.Min) {
		return StatusBelow
	}
	return StatusOK
}
