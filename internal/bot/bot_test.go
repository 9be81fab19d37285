package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/platform/metrics"
	"market-maker-simulator/internal/trader"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	book  domain.OrderBook
	err   error
	block chan struct{}
	calls atomic.Int32
}

func (f *fakeSource) GetName() string {
	return "Fake"
}

func (f *fakeSource) GetCurrentOrderBook(ctx context.Context, pair string) (domain.OrderBook, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return domain.OrderBook{}, ctx.Err()
		}
	}
	return f.book, f.err
}

type failingRefresher struct {
	err error
}

func (f failingRefresher) Refresh(book domain.OrderBook) (*trader.Report, error) {
	return &trader.Report{Pair: book.Pair}, f.err
}

func level(side domain.SideEnum, price, amount string) domain.PriceLevel {
	return domain.PriceLevel{Side: side, Price: decimal.RequireFromString(price), Count: 1, Amount: decimal.RequireFromString(amount)}
}

func marketBook() domain.OrderBook {
	return domain.OrderBook{Pair: "ETH:USDT", Levels: []domain.PriceLevel{
		level(domain.Bid, "1999", "3"),
		level(domain.Ask, "2001", "2"),
	}}
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.New(domain.Balances{Base: decimal.NewFromInt(10), Quote: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	return l
}

func newEngine(t *testing.T, l *ledger.Ledger) *trader.Engine {
	t.Helper()
	engine, err := trader.NewEngine(l, trader.DefaultParams(), rand.New(rand.NewPCG(1, 2)), nil)
	require.NoError(t, err)
	return engine
}

func options(refresh time.Duration) Options {
	return Options{Pair: "ETH:USDT", RefreshInterval: refresh, DisplayInterval: time.Hour}
}

type runResult struct {
	cancel context.CancelFunc
	done   chan error
}

func start(bot *Bot) runResult {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()
	return runResult{cancel: cancel, done: done}
}

func (r runResult) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
		return nil
	}
}

func TestRunPlacesOrdersAndReports(t *testing.T) {
	l := newLedger(t)
	m := metrics.New(prometheus.NewRegistry())
	reports := make(chan *trader.Report, 16)
	handler := ReportHandlerFunc(func(ctx context.Context, report *trader.Report, status ledger.Status) {
		select {
		case reports <- report:
		default:
		}
	})

	bot := New(&fakeSource{book: marketBook()}, l, newEngine(t, l), options(time.Hour), nil, m, handler, MetricsHandler(m))
	run := start(bot)

	var report *trader.Report
	select {
	case report = <-reports:
	case <-time.After(2 * time.Second):
		t.Fatal("no cycle completed")
	}
	run.cancel()
	require.NoError(t, run.wait(t))

	assert.Len(t, report.Placed, 10)
	assert.False(t, report.Degraded())

	snapshot := bot.View().Load()
	assert.Equal(t, 1, snapshot.Cycles)
	assert.Equal(t, "Fake", snapshot.Source)
	assert.Len(t, snapshot.Orders, 10)
	assert.Equal(t, report.ID, snapshot.LastReport.ID)
	assert.Empty(t, snapshot.LastError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RestingOrders.WithLabelValues("Bid")))
}

func TestRunSkipsTicksWhileFetching(t *testing.T) {
	l := newLedger(t)
	m := metrics.New(prometheus.NewRegistry())
	source := &fakeSource{book: marketBook(), block: make(chan struct{})}
	bot := New(source, l, newEngine(t, l), Options{
		Pair:            "ETH:USDT",
		RefreshInterval: 5 * time.Millisecond,
		DisplayInterval: time.Hour,
		FetchTimeout:    5 * time.Second,
	}, nil, m)
	run := start(bot)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SkippedTicks) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), source.calls.Load())

	close(source.block)
	require.Eventually(t, func() bool {
		return bot.View().Load().Cycles >= 1
	}, 2*time.Second, 5*time.Millisecond)

	run.cancel()
	require.NoError(t, run.wait(t))
	assert.GreaterOrEqual(t, bot.View().Load().SkippedTicks, 3)
}

func TestRunSurvivesFetchTimeout(t *testing.T) {
	l := newLedger(t)
	source := &fakeSource{block: make(chan struct{})}
	bot := New(source, l, newEngine(t, l), Options{
		Pair:            "ETH:USDT",
		RefreshInterval: 20 * time.Millisecond,
		DisplayInterval: time.Hour,
		FetchTimeout:    10 * time.Millisecond,
	}, nil, nil)
	run := start(bot)

	require.Eventually(t, func() bool {
		return strings.Contains(bot.View().Load().LastError, context.DeadlineExceeded.Error())
	}, 2*time.Second, 5*time.Millisecond)

	run.cancel()
	require.NoError(t, run.wait(t))

	assert.Zero(t, bot.View().Load().Cycles)
	assert.Empty(t, l.Orders())
}

func TestRunSkipsCrossedBook(t *testing.T) {
	l := newLedger(t)
	m := metrics.New(prometheus.NewRegistry())
	crossed := domain.OrderBook{Pair: "ETH:USDT", Levels: []domain.PriceLevel{
		level(domain.Bid, "2002", "1"),
		level(domain.Ask, "2001", "1"),
	}}
	bot := New(&fakeSource{book: crossed}, l, newEngine(t, l), options(10*time.Millisecond), nil, m)
	run := start(bot)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Cycles.WithLabelValues("rejected")) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	run.cancel()
	require.NoError(t, run.wait(t))
	assert.Contains(t, bot.View().Load().LastError, trader.ErrCrossedBook.Error())
	assert.Equal(t, decimal.NewFromInt(2000).String(), l.Balances().Quote.String())
}

func TestRunHaltsOnViolation(t *testing.T) {
	l := newLedger(t)
	refresher := failingRefresher{err: fmt.Errorf("%w: quote", ledger.ErrInsufficientBalance)}
	bot := New(&fakeSource{book: marketBook()}, l, refresher, options(time.Hour), nil, nil)

	err := bot.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientBalance))
	assert.True(t, trader.IsFatal(err))
	assert.NotEmpty(t, bot.View().Load().LastError)
}

func TestRunHaltsOnEvictionLimit(t *testing.T) {
	l := newLedger(t)
	bot := New(&fakeSource{book: marketBook()}, l, failingRefresher{err: trader.ErrEvictionLimit}, options(time.Hour), nil, nil)

	err := bot.Run(context.Background())
	assert.ErrorIs(t, err, trader.ErrEvictionLimit)
}
