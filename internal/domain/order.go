package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order is a resting order of the simulated participant. Amount is always positive and
// denominated in the base asset; Side decides which balance it reserves.
type Order struct {
	Side   SideEnum        `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Balances holds unlocked capital of the two assets of the pair.
type Balances struct {
	Base  decimal.Decimal `json:"base"`
	Quote decimal.Decimal `json:"quote"`
}

func (b Balances) Add(other Balances) Balances {
	return Balances{Base: b.Base.Add(other.Base), Quote: b.Quote.Add(other.Quote)}
}

func (b Balances) Sub(other Balances) Balances {
	return Balances{Base: b.Base.Sub(other.Base), Quote: b.Quote.Sub(other.Quote)}
}

// NewOrderFromSigned builds an order from a sign-encoded amount.
func NewOrderFromSigned(price decimal.Decimal, count int, amount decimal.Decimal) (Order, error) {
	if !price.IsPositive() {
		return Order{}, fmt.Errorf("%w: non-positive price %s", ErrMalformedBook, price)
	}
	if count <= 0 {
		return Order{}, fmt.Errorf("%w: non-positive count %d at %s", ErrMalformedBook, count, price)
	}
	if amount.IsZero() {
		return Order{}, fmt.Errorf("%w: zero amount at %s", ErrMalformedBook, price)
	}

	side := Bid
	if amount.IsNegative() {
		side = Ask
	}
	return Order{Side: side, Price: price, Count: count, Amount: amount.Abs()}, nil
}

// Signed returns the amount with the bid/ask sign convention of market data.
func (o Order) Signed() decimal.Decimal {
	if o.Side == Ask {
		return o.Amount.Neg()
	}
	return o.Amount
}

// MakeValue is the capital reserved while the order rests.
func (o Order) MakeValue() Balances {
	if o.Side == Bid {
		// bid - spend quote
		return Balances{Base: decimal.Zero, Quote: o.Price.Mul(o.Amount)}
	}
	// ask - spend base
	return Balances{Base: o.Amount, Quote: decimal.Zero}
}

// TakeValue is the capital received when the order is filled.
func (o Order) TakeValue() Balances {
	if o.Side == Bid {
		return Balances{Base: o.Amount, Quote: decimal.Zero}
	}
	return Balances{Base: decimal.Zero, Quote: o.Price.Mul(o.Amount)}
}

// FillDelta is the net balance change a fill produces relative to the moment before the
// order was made.
func (o Order) FillDelta() Balances {
	return o.TakeValue().Sub(o.MakeValue())
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s @ %s (x%d)", o.Side, o.Amount, o.Price, o.Count)
}
