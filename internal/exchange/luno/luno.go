package luno

import (
	"context"
	"fmt"
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/luno/luno-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// bookGetter is the part of the luno-go client the REST source needs.
type bookGetter interface {
	GetOrderBook(ctx context.Context, req *luno.GetOrderBookRequest) (*luno.GetOrderBookResponse, error)
}

// LunoExchange polls the full order book over Luno's REST API.
type LunoExchange struct {
	lunoClient bookGetter
	logger     *zap.Logger
}

func CreateClient(id string, secret string, logger *zap.Logger) *LunoExchange {
	if logger == nil {
		logger = zap.NewNop()
	}

	lunoClient := luno.NewClient()
	if id != "" {
		lunoClient.SetAuth(id, secret)
	}

	logger.Info("Luno client created")

	return &LunoExchange{lunoClient: lunoClient, logger: logger}
}

func (lunoExchange *LunoExchange) GetName() string {
	return domain.Luno.String()
}

// GetCurrentOrderBook returns one level per Luno order entry with a count of one.
func (lunoExchange *LunoExchange) GetCurrentOrderBook(ctx context.Context, pair string) (output domain.OrderBook, err error) {
	req := luno.GetOrderBookRequest{Pair: pair}

	lunoExchange.logger.Debug("Getting Luno order book for pair: " + req.Pair)

	res, err := lunoExchange.lunoClient.GetOrderBook(ctx, &req)
	if err != nil {
		return output, fmt.Errorf("failed to get Luno order book: %w", err)
	}

	output.Source = domain.Luno
	output.Pair = pair
	output.At = time.Now()
	output.Levels = make([]domain.PriceLevel, 0, len(res.Asks)+len(res.Bids))

	for _, ask := range res.Asks {
		level, err := newLevel(domain.Ask, ask.Price.String(), ask.Volume.String())
		if err != nil {
			return domain.OrderBook{}, err
		}
		output.Levels = append(output.Levels, level)
	}
	for _, bid := range res.Bids {
		level, err := newLevel(domain.Bid, bid.Price.String(), bid.Volume.String())
		if err != nil {
			return domain.OrderBook{}, err
		}
		output.Levels = append(output.Levels, level)
	}

	return output, nil
}

func newLevel(side domain.SideEnum, price, volume string) (domain.PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("%w: price %q: %v", domain.ErrMalformedBook, price, err)
	}
	v, err := decimal.NewFromString(volume)
	if err != nil {
		return domain.PriceLevel{}, fmt.Errorf("%w: volume %q: %v", domain.ErrMalformedBook, volume, err)
	}
	if side == domain.Ask {
		v = v.Neg()
	}
	return domain.NewPriceLevelFromSigned(p, 1, v)
}
