// Package trader decides, once per refresh, which resting orders to cancel, which to treat as
// filled and which to place.
package trader

import (
	"errors"
	"fmt"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrEvictionLimit means the evict-then-refill loop ran longer than the side can possibly need.
var ErrEvictionLimit = errors.New("eviction loop exceeded its bound")

// Rand is the randomness the engine draws prices and budget slices from.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

var half = decimal.RequireFromString("0.5")

type Engine struct {
	ledger *ledger.Ledger
	params Params
	rand   Rand
	logger *zap.Logger
	now    func() time.Time
}

func NewEngine(l *ledger.Ledger, params Params, rnd Rand, logger *zap.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger: l,
		params: params,
		rand:   rnd,
		logger: logger,
		now:    time.Now,
	}, nil
}

// IsFatal reports whether a Refresh error leaves the ledger in a state that cannot be trusted.
func IsFatal(err error) bool {
	return ledger.IsViolation(err) || errors.Is(err, ErrEvictionLimit)
}

// Refresh runs one cycle against the snapshot. On error the returned report still lists what
// was applied before the failure.
func (e *Engine) Refresh(book domain.OrderBook) (*Report, error) {
	bestBid, bestAsk := BestPrices(book.Levels)
	report := &Report{
		ID:        uuid.New(),
		Pair:      book.Pair,
		At:        e.now(),
		BestBid:   bestBid,
		BestAsk:   bestAsk,
		Cancelled: make([]domain.Order, 0),
		Taken:     make([]domain.Order, 0),
		Placed:    make([]domain.Order, 0),
	}

	if bestBid.Valid && bestAsk.Valid && bestBid.Decimal.GreaterThanOrEqual(bestAsk.Decimal) {
		return report, fmt.Errorf("%w: bid %s, ask %s", ErrCrossedBook, bestBid.Decimal, bestAsk.Decimal)
	}
	if report.Degraded() {
		e.logger.Warn("Order book side is empty, skipping its steps",
			zap.Bool("hasBids", bestBid.Valid), zap.Bool("hasAsks", bestAsk.Valid))
	}

	minBid, maxAsk := SpanBounds(bestBid, bestAsk, e.params.Span)

	cancelled, err := e.cancelOutOfSpan(minBid, maxAsk)
	report.Cancelled = append(report.Cancelled, cancelled...)
	if err != nil {
		return report, err
	}

	taken, err := e.fill(bestBid, bestAsk)
	report.Taken = append(report.Taken, taken...)
	if err != nil {
		return report, err
	}

	if bestBid.Valid {
		placed, evicted, err := e.replenish(domain.Bid, minBid.Decimal, bestBid.Decimal)
		report.Cancelled = append(report.Cancelled, evicted...)
		report.Placed = append(report.Placed, placed...)
		if err != nil {
			return report, err
		}
	}
	if bestAsk.Valid {
		placed, evicted, err := e.replenish(domain.Ask, bestAsk.Decimal, maxAsk.Decimal)
		report.Cancelled = append(report.Cancelled, evicted...)
		report.Placed = append(report.Placed, placed...)
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

// cancelOutOfSpan cancels bids below minBid and asks above maxAsk.
func (e *Engine) cancelOutOfSpan(minBid, maxAsk decimal.NullDecimal) ([]domain.Order, error) {
	stale := make([]domain.Order, 0)
	for _, order := range e.ledger.Orders() {
		if order.Side == domain.Bid {
			if minBid.Valid && order.Price.LessThan(minBid.Decimal) {
				stale = append(stale, order)
			}
		} else {
			if maxAsk.Valid && order.Price.GreaterThan(maxAsk.Decimal) {
				stale = append(stale, order)
			}
		}
	}
	return apply(stale, e.ledger.Cancel)
}

// fill takes every resting order priced better than the opposing best quote. The whole order
// is assumed to execute; there is no model of counterparty volume.
func (e *Engine) fill(bestBid, bestAsk decimal.NullDecimal) ([]domain.Order, error) {
	marketable := make([]domain.Order, 0)
	for _, order := range e.ledger.Orders() {
		if order.Side == domain.Bid {
			if bestBid.Valid && order.Price.GreaterThan(bestBid.Decimal) {
				marketable = append(marketable, order)
			}
		} else {
			if bestAsk.Valid && order.Price.LessThan(bestAsk.Decimal) {
				marketable = append(marketable, order)
			}
		}
	}
	return apply(marketable, e.ledger.Take)
}

func apply(orders []domain.Order, op func(domain.Order) error) ([]domain.Order, error) {
	done := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if err := op(order); err != nil {
			return done, err
		}
		done = append(done, order)
	}
	return done, nil
}

func (e *Engine) maintain(side domain.SideEnum) int {
	if side == domain.Bid {
		return e.params.MaintainBids
	}
	return e.params.MaintainAsks
}

func (e *Engine) oldest(side domain.SideEnum) (domain.Order, bool) {
	for _, order := range e.ledger.Orders() {
		if order.Side == side {
			return order, true
		}
	}
	return domain.Order{}, false
}
