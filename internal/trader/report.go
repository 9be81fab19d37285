package trader

import (
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Report lists everything a refresh cycle changed, in the order it happened.
type Report struct {
	ID        uuid.UUID           `json:"id"`
	Pair      string              `json:"pair"`
	At        time.Time           `json:"at"`
	BestBid   decimal.NullDecimal `json:"bestBid"`
	BestAsk   decimal.NullDecimal `json:"bestAsk"`
	Cancelled []domain.Order      `json:"cancelled"`
	Taken     []domain.Order      `json:"taken"`
	Placed    []domain.Order      `json:"placed"`
}

// Degraded reports whether a book side was empty and its steps were skipped.
func (r *Report) Degraded() bool {
	return !r.BestBid.Valid || !r.BestAsk.Valid
}

// Realized sums the balance changes of the fills in the report.
func (r *Report) Realized() domain.Balances {
	total := domain.Balances{Base: decimal.Zero, Quote: decimal.Zero}
	for _, order := range r.Taken {
		total = total.Add(order.FillDelta())
	}
	return total
}
