package domain

import (
	"context"
	"errors"
)

// ErrMalformedBook is returned by sources when a snapshot cannot be turned into price levels.
// It is distinct from an empty book, which is a valid snapshot with no levels.
var ErrMalformedBook = errors.New("malformed order book")

// MarketSource supplies order book snapshots for a pair.
type MarketSource interface {
	GetName() string
	GetCurrentOrderBook(ctx context.Context, pair string) (output OrderBook, err error)
}
