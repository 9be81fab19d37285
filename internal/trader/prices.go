package trader

import (
	"errors"

	"market-maker-simulator/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrCrossedBook = errors.New("best bid is not below best ask")
	errNoPriceRoom = errors.New("price band is narrower than one tick")
)

// BestPrices returns the highest bid and lowest ask of the snapshot. A side without levels
// comes back invalid.
func BestPrices(levels []domain.PriceLevel) (bestBid, bestAsk decimal.NullDecimal) {
	for _, level := range levels {
		if level.Side == domain.Bid {
			if !bestBid.Valid || level.Price.GreaterThan(bestBid.Decimal) {
				bestBid = decimal.NewNullDecimal(level.Price)
			}
		} else {
			if !bestAsk.Valid || level.Price.LessThan(bestAsk.Decimal) {
				bestAsk = decimal.NewNullDecimal(level.Price)
			}
		}
	}
	return bestBid, bestAsk
}

// SpanBounds widens the best prices by span: minBid = bestBid*(1-span), maxAsk = bestAsk*(1+span).
func SpanBounds(bestBid, bestAsk decimal.NullDecimal, span decimal.Decimal) (minBid, maxAsk decimal.NullDecimal) {
	one := decimal.NewFromInt(1)
	if bestBid.Valid {
		minBid = decimal.NewNullDecimal(bestBid.Decimal.Mul(one.Sub(span)))
	}
	if bestAsk.Valid {
		maxAsk = decimal.NewNullDecimal(bestAsk.Decimal.Mul(one.Add(span)))
	}
	return minBid, maxAsk
}

// randomPrice draws a price in [lo, hi) on the tick grid given by places.
func randomPrice(rnd Rand, lo, hi decimal.Decimal, places int32) (decimal.Decimal, error) {
	lo = lo.RoundUp(places)
	if lo.GreaterThanOrEqual(hi) {
		return decimal.Zero, errNoPriceRoom
	}
	r := decimal.NewFromFloat(rnd.Float64())
	return lo.Add(hi.Sub(lo).Mul(r)).RoundDown(places), nil
}
