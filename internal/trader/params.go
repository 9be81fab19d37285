package trader

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Params tunes the refresh cycle.
type Params struct {
	// Span is the fractional band around the best prices inside which resting orders survive.
	Span decimal.Decimal
	// MakeRatio is the share of each asset kept locked in resting orders.
	MakeRatio    decimal.Decimal
	MaintainBids int
	MaintainAsks int
	// MinAmount is the smallest base amount worth placing.
	MinAmount   decimal.Decimal
	PricePlaces int32
	BasePlaces  int32
	QuotePlaces int32
}

func DefaultParams() Params {
	return Params{
		Span:         decimal.RequireFromString("0.01"),
		MakeRatio:    decimal.RequireFromString("0.9"),
		MaintainBids: 5,
		MaintainAsks: 5,
		MinAmount:    decimal.RequireFromString("0.000001"),
		PricePlaces:  5,
		BasePlaces:   8,
		QuotePlaces:  8,
	}
}

func (p Params) Validate() error {
	if p.Span.IsNegative() || p.Span.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("span must be in [0, 1), got %s", p.Span)
	}
	if !p.MakeRatio.IsPositive() || p.MakeRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("make ratio must be in (0, 1], got %s", p.MakeRatio)
	}
	if p.MaintainBids < 0 || p.MaintainAsks < 0 {
		return fmt.Errorf("maintained order counts must not be negative, got %d bids and %d asks", p.MaintainBids, p.MaintainAsks)
	}
	if p.MinAmount.IsNegative() {
		return fmt.Errorf("min amount must not be negative, got %s", p.MinAmount)
	}
	if p.PricePlaces < 0 || p.BasePlaces < 0 || p.QuotePlaces < 0 {
		return fmt.Errorf("decimal places must not be negative")
	}
	return nil
}
