package luno

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"market-maker-simulator/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrNotSynced is returned until the stream has received its first snapshot.
var ErrNotSynced = errors.New("luno stream has no snapshot yet")

type orderEntry struct {
	side   domain.SideEnum
	price  decimal.Decimal
	volume decimal.Decimal
}

// feed is the local copy of Luno's order-level book, rebuilt from a snapshot and kept current
// by sequenced updates.
type feed struct {
	synced   bool
	sequence int64
	status   string
	orders   map[string]orderEntry
	updated  time.Time
}

func (f *feed) reset() {
	f.synced = false
	f.sequence = 0
	f.orders = nil
}

func (f *feed) apply(message []byte) error {
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte(`""`)) {
		return nil // keep-alive
	}

	if !f.synced {
		var snapshot LunoOrderBookFeedSnapshot
		if err := json.Unmarshal(trimmed, &snapshot); err != nil {
			return fmt.Errorf("failed to unmarshal Luno order book feed snapshot: %w", err)
		}
		f.applySnapshot(&snapshot)
		return nil
	}

	var feedMessage LunoOrderBookFeedMessage
	if err := json.Unmarshal(trimmed, &feedMessage); err != nil {
		return fmt.Errorf("failed to unmarshal Luno order book feed: %w", err)
	}
	if feedMessage.Sequence != f.sequence+1 {
		return &SequenceIncorrectError{ExpectedSequence: f.sequence + 1, ActualSequence: feedMessage.Sequence}
	}
	f.sequence = feedMessage.Sequence
	f.applyUpdate(&feedMessage)
	return nil
}

func (f *feed) applySnapshot(snapshot *LunoOrderBookFeedSnapshot) {
	f.orders = make(map[string]orderEntry, len(snapshot.Asks)+len(snapshot.Bids))
	for _, ask := range snapshot.Asks {
		f.orders[ask.Id] = orderEntry{side: domain.Ask, price: ask.Price, volume: ask.Volume}
	}
	for _, bid := range snapshot.Bids {
		f.orders[bid.Id] = orderEntry{side: domain.Bid, price: bid.Price, volume: bid.Volume}
	}
	f.sequence = snapshot.Sequence
	f.status = snapshot.Status
	f.synced = true
	f.updated = time.UnixMilli(snapshot.Timestamp)
}

func (f *feed) applyUpdate(feedMessage *LunoOrderBookFeedMessage) {
	for _, trade := range feedMessage.TradeUpdates {
		entry, ok := f.orders[trade.MakerOrderId]
		if !ok {
			continue
		}
		entry.volume = entry.volume.Sub(trade.Base)
		if entry.volume.IsPositive() {
			f.orders[trade.MakerOrderId] = entry
		} else {
			delete(f.orders, trade.MakerOrderId)
		}
	}

	if create := feedMessage.CreateUpdate; create != nil {
		side := domain.Bid
		if create.Type == "ASK" {
			side = domain.Ask
		}
		f.orders[create.OrderId] = orderEntry{side: side, price: create.Price, volume: create.Volume}
	}

	if feedMessage.DeleteUpdate != nil {
		delete(f.orders, feedMessage.DeleteUpdate.OrderId)
	}

	if feedMessage.StatusUpdate != nil {
		f.status = feedMessage.StatusUpdate.Status
	}

	f.updated = time.UnixMilli(feedMessage.Timestamp)
}

// book aggregates the order-level state into one level per side and price.
func (f *feed) book(pair string) (domain.OrderBook, error) {
	if !f.synced {
		return domain.OrderBook{}, ErrNotSynced
	}

	type key struct {
		side  domain.SideEnum
		price string
	}
	index := make(map[key]int, len(f.orders))
	levels := make([]domain.PriceLevel, 0, len(f.orders))
	for _, entry := range f.orders {
		k := key{side: entry.side, price: entry.price.String()}
		if i, ok := index[k]; ok {
			levels[i].Count++
			levels[i].Amount = levels[i].Amount.Add(entry.volume)
			continue
		}
		index[k] = len(levels)
		levels = append(levels, domain.PriceLevel{Side: entry.side, Price: entry.price, Count: 1, Amount: entry.volume})
	}

	for _, level := range levels {
		if !level.Price.IsPositive() || !level.Amount.IsPositive() {
			return domain.OrderBook{}, fmt.Errorf("%w: %s level at %s", domain.ErrMalformedBook, level.Side, level.Price)
		}
	}

	return domain.OrderBook{Source: domain.LunoStream, Pair: pair, Levels: levels, At: f.updated}, nil
}
