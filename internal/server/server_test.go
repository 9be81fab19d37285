package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"market-maker-simulator/internal/bot"
	"market-maker-simulator/internal/database"
	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/platform/metrics"
	"market-maker-simulator/internal/trader"

	cws "github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *trader.Report {
	return &trader.Report{
		ID:      uuid.New(),
		Pair:    "ETH:USDT",
		At:      time.Now(),
		BestBid: decimal.NewNullDecimal(decimal.NewFromInt(1999)),
		BestAsk: decimal.NewNullDecimal(decimal.NewFromInt(2001)),
		Placed: []domain.Order{
			{Side: domain.Bid, Price: decimal.NewFromInt(1990), Count: 1, Amount: decimal.NewFromInt(1)},
		},
	}
}

func newServer(t *testing.T, withJournal bool) (*FiberServer, *bot.View, database.Service) {
	t.Helper()
	view := &bot.View{}
	var journal database.Service
	if withJournal {
		var err error
		journal, err = database.New(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { journal.Close() })
	}

	registry := prometheus.NewRegistry()
	metrics.New(registry)

	s := New(view, journal, NewHub(nil), registry)
	s.RegisterFiberRoutes()
	return s, view, journal
}

func get(t *testing.T, s *FiberServer, path string) (int, []byte) {
	t.Helper()
	resp, err := s.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	s, _, _ := newServer(t, true)

	status, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, status)

	var health struct {
		Status  string            `json:"status"`
		Journal map[string]string `json:"journal"`
	}
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "up", health.Status)
	assert.Equal(t, "up", health.Journal["status"])
}

func TestStatusAndOrders(t *testing.T) {
	s, view, _ := newServer(t, false)
	report := sampleReport()
	view.Publish(bot.Snapshot{
		Pair:       "ETH:USDT",
		Source:     "Deversifi",
		Status:     ledger.Status{Base: decimal.NewFromInt(10), Quote: decimal.NewFromInt(10), Bids: 1},
		Orders:     report.Placed,
		LastReport: report,
		Cycles:     3,
	})

	status, body := get(t, s, "/status")
	require.Equal(t, http.StatusOK, status)
	var got struct {
		Pair   string        `json:"pair"`
		Cycles int           `json:"cycles"`
		Status ledger.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ETH:USDT", got.Pair)
	assert.Equal(t, 3, got.Cycles)
	assert.Equal(t, 1, got.Status.Bids)

	status, body = get(t, s, "/orders")
	require.Equal(t, http.StatusOK, status)
	var orders []domain.Order
	require.NoError(t, json.Unmarshal(body, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, domain.Bid, orders[0].Side)
	assert.True(t, decimal.NewFromInt(1990).Equal(orders[0].Price))

	status, body = get(t, s, "/cycles/last")
	require.Equal(t, http.StatusOK, status)
	var last trader.Report
	require.NoError(t, json.Unmarshal(body, &last))
	assert.Equal(t, report.ID, last.ID)
}

func TestEmptyView(t *testing.T) {
	s, _, _ := newServer(t, false)

	status, body := get(t, s, "/orders")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = get(t, s, "/cycles/last")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, s, "/cycles")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestCycles(t *testing.T) {
	s, _, journal := newServer(t, true)
	require.NoError(t, journal.RecordCycle(context.Background(), sampleReport()))
	require.NoError(t, journal.RecordCycle(context.Background(), sampleReport()))

	status, body := get(t, s, "/cycles?limit=1")
	require.Equal(t, http.StatusOK, status)
	var reports []trader.Report
	require.NoError(t, json.Unmarshal(body, &reports))
	assert.Len(t, reports, 1)

	status, _ = get(t, s, "/cycles?limit=abc")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetrics(t *testing.T) {
	s, _, _ := newServer(t, false)

	status, body := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "mm_skipped_ticks_total")
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _, _ := newServer(t, false)

	status, _ := get(t, s, "/ws")
	assert.Equal(t, http.StatusUpgradeRequired, status)
}

func TestWebsocketStreamsReports(t *testing.T) {
	s, _, _ := newServer(t, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Listener(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := cws.Dial(ctx, "ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return s.hub.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	report := sampleReport()
	s.hub.HandleReport(ctx, report, ledger.Status{Bids: 1})

	_, payload, err := conn.Read(ctx)
	require.NoError(t, err)

	var message struct {
		Report trader.Report `json:"report"`
		Status ledger.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(payload, &message))
	assert.Equal(t, report.ID, message.Report.ID)
	assert.Equal(t, 1, message.Status.Bids)
	assert.Len(t, message.Report.Placed, 1)

	conn.Close(cws.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.hub.clientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
