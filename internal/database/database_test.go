package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/trader"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) Service {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "journal", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func order(side domain.SideEnum, price, amount string) domain.Order {
	return domain.Order{Side: side, Price: decimal.RequireFromString(price), Count: 1, Amount: decimal.RequireFromString(amount)}
}

func TestRecordAndReadCycles(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first := &trader.Report{
		ID:        uuid.New(),
		Pair:      "ETH:USDT",
		At:        at,
		BestBid:   decimal.NewNullDecimal(decimal.RequireFromString("1999.5")),
		Cancelled: []domain.Order{order(domain.Bid, "1900", "1")},
		Taken:     []domain.Order{order(domain.Ask, "1990", "0.5")},
		Placed:    []domain.Order{order(domain.Bid, "1995.1", "0.2"), order(domain.Bid, "1990", "0.3")},
	}
	second := &trader.Report{ID: uuid.New(), Pair: "ETH:USDT", At: at.Add(5 * time.Second)}

	require.NoError(t, s.RecordCycle(ctx, first))
	require.NoError(t, s.RecordCycle(ctx, second))

	reports, err := s.RecentCycles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, second.ID, reports[0].ID)
	assert.Empty(t, reports[0].Placed)
	assert.False(t, reports[0].BestBid.Valid)

	got := reports[1]
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.At.Equal(at))
	assert.True(t, got.BestBid.Valid)
	assert.True(t, first.BestBid.Decimal.Equal(got.BestBid.Decimal))
	assert.False(t, got.BestAsk.Valid)
	require.Len(t, got.Cancelled, 1)
	require.Len(t, got.Taken, 1)
	require.Len(t, got.Placed, 2)
	assert.Equal(t, domain.Ask, got.Taken[0].Side)
	assert.True(t, decimal.RequireFromString("1995.1").Equal(got.Placed[0].Price))
	assert.True(t, decimal.RequireFromString("0.3").Equal(got.Placed[1].Amount))
}

func TestRecentCyclesLimit(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordCycle(ctx, &trader.Report{ID: uuid.New(), Pair: "ETH:USDT", At: time.Unix(int64(i), 0)}))
	}

	reports, err := s.RecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(2), reports[0].At.Unix())
}

func TestDuplicateCycleRejected(t *testing.T) {
	s := newService(t)
	report := &trader.Report{ID: uuid.New(), Pair: "ETH:USDT", At: time.Now()}
	require.NoError(t, s.RecordCycle(context.Background(), report))
	assert.Error(t, s.RecordCycle(context.Background(), report))
}

func TestHealth(t *testing.T) {
	s := newService(t)
	require.NoError(t, s.RecordCycle(context.Background(), &trader.Report{ID: uuid.New(), Pair: "ETH:USDT", At: time.Now()}))

	stats := s.Health()
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "1", stats["cycles"])
}
