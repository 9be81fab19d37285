package trader

import (
	"fmt"

	"market-maker-simulator/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// replenish tops up one side toward its order count and locked value target, placing new
// orders with prices in [lo, hi).
//
// When the side already has all its orders but not enough value locked, the oldest order is
// evicted so the freed slot can be refilled with the whole gap.
func (e *Engine) replenish(side domain.SideEnum, lo, hi decimal.Decimal) (placed, evicted []domain.Order, err error) {
	maintain := e.maintain(side)
	evicted = make([]domain.Order, 0)

	var missing int
	var gap decimal.Decimal
	for evictions := 0; ; evictions++ {
		status := e.ledger.Status()
		missing = maintain - status.Count(side)
		locked := status.Locked(side)
		target := e.params.MakeRatio.Mul(status.Unlocked(side).Add(locked))
		gap = target.Sub(locked)

		if missing != 0 || !gap.IsPositive() {
			break
		}
		if evictions > maintain {
			return nil, evicted, fmt.Errorf("%w: %d evictions on %s side", ErrEvictionLimit, evictions, side)
		}

		victim, ok := e.oldest(side)
		if !ok {
			break
		}
		if err := e.ledger.Cancel(victim); err != nil {
			return nil, evicted, err
		}
		evicted = append(evicted, victim)
	}

	if missing <= 0 || !gap.IsPositive() {
		return make([]domain.Order, 0), evicted, nil
	}

	placed, err = e.place(side, missing, gap, lo, hi)
	return placed, evicted, err
}

// place splits budget over slots orders. Every order but the last takes a random share below
// one half of what is still unspent; the last one takes the rest.
func (e *Engine) place(side domain.SideEnum, slots int, budget, lo, hi decimal.Decimal) ([]domain.Order, error) {
	placed := make([]domain.Order, 0, slots)
	budgetPlaces := e.params.BasePlaces
	if side == domain.Bid {
		budgetPlaces = e.params.QuotePlaces
	}

	for i := 0; i < slots; i++ {
		slice := budget
		if i < slots-1 {
			r := decimal.NewFromFloat(e.rand.Float64())
			slice = budget.Mul(r).Mul(half).RoundDown(budgetPlaces)
		}
		if !slice.IsPositive() {
			continue
		}

		price, err := randomPrice(e.rand, lo, hi, e.params.PricePlaces)
		if err != nil {
			e.logger.Warn("Cannot place "+side.String()+" orders: "+err.Error(),
				zap.String("lo", lo.String()), zap.String("hi", hi.String()))
			return placed, nil
		}

		amount := e.amountFor(side, slice, price)
		if amount.LessThan(e.params.MinAmount) || !amount.IsPositive() {
			// dust: the slice stays spent, so the side is under-deployed until the next cycle
			budget = budget.Sub(slice)
			continue
		}
		if resting, ok := e.ledger.Lookup(price); ok && resting.Side != side {
			e.logger.Warn("Skipping " + side.String() + " at " + price.String() + ", opposite order rests there")
			budget = budget.Sub(slice)
			continue
		}

		order := domain.Order{Side: side, Price: price, Count: 1, Amount: amount}
		if err := e.ledger.Make(order); err != nil {
			return placed, err
		}
		placed = append(placed, order)

		value := order.MakeValue()
		if side == domain.Bid {
			budget = budget.Sub(value.Quote)
		} else {
			budget = budget.Sub(value.Base)
		}
	}

	return placed, nil
}

// amountFor converts a budget slice into a base amount on the base grid, never worth more than
// the slice.
func (e *Engine) amountFor(side domain.SideEnum, slice, price decimal.Decimal) decimal.Decimal {
	places := e.params.BasePlaces
	if side == domain.Ask {
		return slice.RoundDown(places)
	}

	amount := slice.Div(price).RoundDown(places)
	if price.Mul(amount).GreaterThan(slice) {
		amount = amount.Sub(decimal.New(1, -places))
	}
	return amount
}
