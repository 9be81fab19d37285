package metrics

import (
	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/trader"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics are the bot's Prometheus collectors. Outcome labels: ok, degraded, fetch_error,
// rejected, violation.
type Metrics struct {
	Cycles          *prometheus.CounterVec
	SkippedTicks    prometheus.Counter
	OrdersPlaced    *prometheus.CounterVec
	OrdersFilled    *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	FetchSeconds    prometheus.Histogram
	Balance         *prometheus.GaugeVec
	RestingOrders   *prometheus.GaugeVec
	BestPrice       *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_cycles_total",
			Help: "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mm_skipped_ticks_total",
			Help: "Refresh ticks dropped because a cycle was still in flight.",
		}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_orders_placed_total",
			Help: "Simulated orders placed.",
		}, []string{"side"}),
		OrdersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_orders_filled_total",
			Help: "Simulated orders filled.",
		}, []string{"side"}),
		OrdersCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mm_orders_cancelled_total",
			Help: "Simulated orders cancelled.",
		}, []string{"side"}),
		FetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mm_snapshot_fetch_seconds",
			Help:    "Order book snapshot fetch latency.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mm_balance",
			Help: "Ledger balances by asset and state (unlocked or locked).",
		}, []string{"asset", "state"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mm_resting_orders",
			Help: "Resting orders by side.",
		}, []string{"side"}),
		BestPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mm_best_price",
			Help: "Best external bid and ask of the last cycle.",
		}, []string{"side"}),
	}

	reg.MustRegister(
		m.Cycles,
		m.SkippedTicks,
		m.OrdersPlaced,
		m.OrdersFilled,
		m.OrdersCancelled,
		m.FetchSeconds,
		m.Balance,
		m.RestingOrders,
		m.BestPrice,
	)
	return m
}

func side(order domain.Order) string {
	return order.Side.String()
}

// ObserveReport counts the orders of a finished cycle.
func (m *Metrics) ObserveReport(report *trader.Report) {
	for _, order := range report.Placed {
		m.OrdersPlaced.WithLabelValues(side(order)).Inc()
	}
	for _, order := range report.Taken {
		m.OrdersFilled.WithLabelValues(side(order)).Inc()
	}
	for _, order := range report.Cancelled {
		m.OrdersCancelled.WithLabelValues(side(order)).Inc()
	}
	if report.BestBid.Valid {
		m.BestPrice.WithLabelValues(domain.Bid.String()).Set(float(report.BestBid.Decimal))
	}
	if report.BestAsk.Valid {
		m.BestPrice.WithLabelValues(domain.Ask.String()).Set(float(report.BestAsk.Decimal))
	}
}

func (m *Metrics) ObserveStatus(status ledger.Status) {
	m.Balance.WithLabelValues("base", "unlocked").Set(float(status.Base))
	m.Balance.WithLabelValues("quote", "unlocked").Set(float(status.Quote))
	m.Balance.WithLabelValues("base", "locked").Set(float(status.PlacedBase))
	m.Balance.WithLabelValues("quote", "locked").Set(float(status.PlacedQuote))
	m.RestingOrders.WithLabelValues(domain.Bid.String()).Set(float64(status.Bids))
	m.RestingOrders.WithLabelValues(domain.Ask.String()).Set(float64(status.Asks))
}

func float(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
