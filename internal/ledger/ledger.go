// Package ledger keeps the simulated balances and resting orders of the market maker.
//
// A Ledger is not safe for concurrent use. The bot confines it to a single goroutine.
package ledger

import (
	"fmt"
	"sort"

	"market-maker-simulator/internal/domain"

	"github.com/shopspring/decimal"
)

type Ledger struct {
	balances domain.Balances
	// price key -> resting order
	orders map[string]*entry
	seq    uint64
}

type entry struct {
	order domain.Order
	seq   uint64
}

// Status is a read-only summary of the ledger.
type Status struct {
	Base        decimal.Decimal `json:"base"`
	Quote       decimal.Decimal `json:"quote"`
	Bids        int             `json:"bids"`
	Asks        int             `json:"asks"`
	PlacedBase  decimal.Decimal `json:"placedBase"`
	PlacedQuote decimal.Decimal `json:"placedQuote"`
}

// Count returns the number of resting orders on side.
func (s Status) Count(side domain.SideEnum) int {
	if side == domain.Bid {
		return s.Bids
	}
	return s.Asks
}

// Unlocked returns the free balance the side spends from when making orders.
func (s Status) Unlocked(side domain.SideEnum) decimal.Decimal {
	if side == domain.Bid {
		return s.Quote
	}
	return s.Base
}

// Locked returns the capital reserved by resting orders of side.
func (s Status) Locked(side domain.SideEnum) decimal.Decimal {
	if side == domain.Bid {
		return s.PlacedQuote
	}
	return s.PlacedBase
}

func New(initial domain.Balances) (*Ledger, error) {
	if initial.Base.IsNegative() || initial.Quote.IsNegative() {
		return nil, fmt.Errorf("negative initial balances: base %s, quote %s", initial.Base, initial.Quote)
	}
	return &Ledger{
		balances: initial,
		orders:   make(map[string]*entry),
	}, nil
}

func priceKey(price decimal.Decimal) string {
	return price.String()
}

func validate(order domain.Order) error {
	if !order.Price.IsPositive() {
		return fmt.Errorf("%w: non-positive price in %s", ErrInvalidOrder, order)
	}
	if order.Count <= 0 {
		return fmt.Errorf("%w: non-positive count in %s", ErrInvalidOrder, order)
	}
	if !order.Amount.IsPositive() {
		return fmt.Errorf("%w: non-positive amount in %s", ErrInvalidOrder, order)
	}
	if order.Side != domain.Bid && order.Side != domain.Ask {
		return fmt.Errorf("%w: unknown side in %s", ErrInvalidOrder, order)
	}
	return nil
}

// Make reserves the order's make value and rests it, aggregating with a same-side order at
// the same price. Nothing changes when an error is returned.
func (l *Ledger) Make(order domain.Order) error {
	if err := validate(order); err != nil {
		return err
	}

	value := order.MakeValue()
	if l.balances.Base.LessThan(value.Base) {
		return fmt.Errorf("make %s: %w", order, &InsufficientBalanceError{Asset: "base", Need: value.Base, Have: l.balances.Base})
	}
	if l.balances.Quote.LessThan(value.Quote) {
		return fmt.Errorf("make %s: %w", order, &InsufficientBalanceError{Asset: "quote", Need: value.Quote, Have: l.balances.Quote})
	}

	key := priceKey(order.Price)
	existing, ok := l.orders[key]
	if ok && existing.order.Side != order.Side {
		return fmt.Errorf("%w: make %s over resting %s", ErrSideConflict, order, existing.order)
	}

	l.balances = l.balances.Sub(value)

	if ok {
		existing.order.Count += order.Count
		existing.order.Amount = existing.order.Amount.Add(order.Amount)
		return nil
	}

	l.seq++
	l.orders[key] = &entry{order: order, seq: l.seq}
	return nil
}

// Take removes the order from the book as filled and credits its take value.
func (l *Ledger) Take(order domain.Order) error {
	if err := l.remove(order); err != nil {
		return fmt.Errorf("take: %w", err)
	}
	l.balances = l.balances.Add(order.TakeValue())
	return nil
}

// Cancel removes the order from the book and releases its make value.
func (l *Ledger) Cancel(order domain.Order) error {
	if err := l.remove(order); err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	l.balances = l.balances.Add(order.MakeValue())
	return nil
}

func (l *Ledger) remove(order domain.Order) error {
	if err := validate(order); err != nil {
		return err
	}

	key := priceKey(order.Price)
	existing, ok := l.orders[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, order.Price)
	}
	resting := existing.order

	if resting.Side != order.Side {
		return fmt.Errorf("%w: remove %s from resting %s", ErrSideConflict, order, resting)
	}
	if resting.Amount.LessThan(order.Amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAmount, resting.Amount, order.Amount)
	}
	if resting.Count < order.Count {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientCount, resting.Count, order.Count)
	}

	if resting.Amount.Equal(order.Amount) {
		if resting.Count != order.Count {
			return fmt.Errorf("%w: resting %s, removing %s", ErrCountMismatch, resting, order)
		}
		delete(l.orders, key)
		return nil
	}

	// partial removal must leave at least one order behind
	if resting.Count <= order.Count {
		return fmt.Errorf("%w: partial removal of %s would empty %s", ErrInsufficientCount, order, resting)
	}
	existing.order.Count -= order.Count
	existing.order.Amount = resting.Amount.Sub(order.Amount)
	return nil
}

func (l *Ledger) Status() Status {
	status := Status{
		Base:        l.balances.Base,
		Quote:       l.balances.Quote,
		PlacedBase:  decimal.Zero,
		PlacedQuote: decimal.Zero,
	}

	for _, e := range l.orders {
		if e.order.Side == domain.Bid {
			status.Bids++
		} else {
			status.Asks++
		}
		value := e.order.MakeValue()
		status.PlacedBase = status.PlacedBase.Add(value.Base)
		status.PlacedQuote = status.PlacedQuote.Add(value.Quote)
	}

	return status
}

// Orders returns a copy of the resting orders, oldest first.
func (l *Ledger) Orders() []domain.Order {
	entries := make([]*entry, 0, len(l.orders))
	for _, e := range l.orders {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	orders := make([]domain.Order, len(entries))
	for i, e := range entries {
		orders[i] = e.order
	}
	return orders
}

// Lookup returns the order resting at price, if any.
func (l *Ledger) Lookup(price decimal.Decimal) (domain.Order, bool) {
	e, ok := l.orders[priceKey(price)]
	if !ok {
		return domain.Order{}, false
	}
	return e.order, true
}

func (l *Ledger) Balances() domain.Balances {
	return l.balances
}

// Totals returns unlocked plus locked capital per asset.
func (l *Ledger) Totals() domain.Balances {
	status := l.Status()
	return domain.Balances{
		Base:  status.Base.Add(status.PlacedBase),
		Quote: status.Quote.Add(status.PlacedQuote),
	}
}
