package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is one aggregated entry of an external order book.
type PriceLevel struct {
	Side   SideEnum
	Price  decimal.Decimal
	Count  int
	Amount decimal.Decimal
}

// NewPriceLevelFromSigned converts the wire representation, where a positive amount is a bid
// and a negative amount is an ask.
func NewPriceLevelFromSigned(price decimal.Decimal, count int, amount decimal.Decimal) (PriceLevel, error) {
	order, err := NewOrderFromSigned(price, count, amount)
	if err != nil {
		return PriceLevel{}, err
	}
	return PriceLevel(order), nil
}

// OrderBook is an unordered snapshot of the external book.
type OrderBook struct {
	Source SourceEnum
	Pair   string
	Levels []PriceLevel
	At     time.Time
}

func (book OrderBook) Bids() []PriceLevel {
	return book.side(Bid)
}

func (book OrderBook) Asks() []PriceLevel {
	return book.side(Ask)
}

func (book OrderBook) side(side SideEnum) []PriceLevel {
	levels := make([]PriceLevel, 0, len(book.Levels))
	for _, level := range book.Levels {
		if level.Side == side {
			levels = append(levels, level)
		}
	}
	return levels
}
