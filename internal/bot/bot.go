// Package bot drives the trader on a schedule: it fetches snapshots off the trading goroutine,
// runs refresh cycles, reports them and halts on ledger invariant violations.
package bot

import (
	"context"
	"fmt"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/platform/logger"
	"market-maker-simulator/internal/platform/metrics"
	"market-maker-simulator/internal/trader"

	"go.uber.org/zap"
)

// Refresher runs one decision cycle. *trader.Engine satisfies it.
type Refresher interface {
	Refresh(book domain.OrderBook) (*trader.Report, error)
}

// ReportHandler receives every completed cycle. Handlers run on the trading goroutine and
// must return quickly.
type ReportHandler interface {
	HandleReport(ctx context.Context, report *trader.Report, status ledger.Status)
}

type ReportHandlerFunc func(ctx context.Context, report *trader.Report, status ledger.Status)

func (f ReportHandlerFunc) HandleReport(ctx context.Context, report *trader.Report, status ledger.Status) {
	f(ctx, report, status)
}

type Options struct {
	Pair            string
	RefreshInterval time.Duration
	DisplayInterval time.Duration
	// FetchTimeout bounds one snapshot fetch. Zero means RefreshInterval.
	FetchTimeout time.Duration
}

type Bot struct {
	source   domain.MarketSource
	ledger   *ledger.Ledger
	engine   Refresher
	options  Options
	assets   assets
	loggers  *logger.Loggers
	metrics  *metrics.Metrics
	handlers []ReportHandler
	view     *View

	cycles  int
	skipped int
}

type fetchResult struct {
	book    domain.OrderBook
	err     error
	elapsed time.Duration
}

// New wires a bot. m may be nil.
func New(source domain.MarketSource, l *ledger.Ledger, engine Refresher, options Options, loggers *logger.Loggers, m *metrics.Metrics, handlers ...ReportHandler) *Bot {
	if loggers == nil {
		loggers = logger.Nop()
	}
	if options.FetchTimeout <= 0 {
		options.FetchTimeout = options.RefreshInterval
	}
	return &Bot{
		source:   source,
		ledger:   l,
		engine:   engine,
		options:  options,
		assets:   assetsOf(options.Pair),
		loggers:  loggers,
		metrics:  m,
		handlers: handlers,
		view:     &View{},
	}
}

// View is the read side the HTTP server serves from.
func (bot *Bot) View() *View {
	return bot.view
}

// Run trades until ctx is done, returning nil. It returns the error of a cycle that broke a
// ledger invariant, after which the ledger must not be used again.
func (bot *Bot) Run(ctx context.Context) error {
	refreshTicker := time.NewTicker(bot.options.RefreshInterval)
	defer refreshTicker.Stop()
	displayTicker := time.NewTicker(bot.options.DisplayInterval)
	defer displayTicker.Stop()

	bot.loggers.App.Info("Start trading " + bot.options.Pair + " on " + bot.source.GetName() + " every " + bot.options.RefreshInterval.String())
	bot.publish(nil, "")
	bot.displayStatus()

	results := make(chan fetchResult, 1)
	inFlight := true
	go bot.fetch(ctx, results)

	for {
		select {
		case <-ctx.Done():
			bot.loggers.App.Info("Stop trading")
			return nil
		case <-refreshTicker.C:
			if inFlight {
				bot.skipped++
				if bot.metrics != nil {
					bot.metrics.SkippedTicks.Inc()
				}
				bot.loggers.App.Debug("Refresh still in flight, skipping tick")
				continue
			}
			inFlight = true
			go bot.fetch(ctx, results)
		case result := <-results:
			inFlight = false
			if err := bot.cycle(ctx, result); err != nil {
				return err
			}
		case <-displayTicker.C:
			bot.displayStatus()
		}
	}
}

func (bot *Bot) fetch(ctx context.Context, results chan<- fetchResult) {
	ctx, cancel := context.WithTimeout(ctx, bot.options.FetchTimeout)
	defer cancel()

	started := time.Now()
	book, err := bot.source.GetCurrentOrderBook(ctx, bot.options.Pair)
	results <- fetchResult{book: book, err: err, elapsed: time.Since(started)}
}

func (bot *Bot) outcome(name string) {
	if bot.metrics != nil {
		bot.metrics.Cycles.WithLabelValues(name).Inc()
	}
}

func (bot *Bot) cycle(ctx context.Context, result fetchResult) error {
	if bot.metrics != nil {
		bot.metrics.FetchSeconds.Observe(result.elapsed.Seconds())
	}

	if result.err != nil {
		bot.loggers.App.Error("Failed to get order book for "+bot.source.GetName()+" Symbol:"+bot.options.Pair, zap.Error(result.err))
		bot.outcome("fetch_error")
		bot.publish(nil, result.err.Error())
		return nil
	}

	report, err := bot.engine.Refresh(result.book)
	if err != nil {
		if trader.IsFatal(err) {
			// Whatever was applied before the failure still happened.
			if report != nil {
				bot.display(report)
			}
			bot.loggers.App.Error("Ledger invariant violated, halting", zap.Error(err))
			bot.outcome("violation")
			bot.publish(report, err.Error())
			bot.logState()
			return fmt.Errorf("refresh cycle halted the bot: %w", err)
		}
		bot.loggers.App.Warn("Snapshot rejected, skipping cycle", zap.Error(err))
		bot.outcome("rejected")
		bot.publish(nil, err.Error())
		return nil
	}

	bot.cycles++
	if report.Degraded() {
		bot.outcome("degraded")
	} else {
		bot.outcome("ok")
	}

	bot.display(report)
	bot.logState()
	status := bot.ledger.Status()
	bot.publish(report, "")
	for _, handler := range bot.handlers {
		handler.HandleReport(ctx, report, status)
	}
	return nil
}

func (bot *Bot) logState() {
	bot.loggers.State.Info("Current internal state for pair: "+bot.options.Pair,
		zap.Any("status", bot.ledger.Status()),
		zap.Any("orders", bot.ledger.Orders()))
}

// publish keeps the previous report when report is nil.
func (bot *Bot) publish(report *trader.Report, lastError string) {
	if report == nil {
		report = bot.view.Load().LastReport
	}
	bot.view.Publish(Snapshot{
		Pair:         bot.options.Pair,
		Source:       bot.source.GetName(),
		Status:       bot.ledger.Status(),
		Orders:       bot.ledger.Orders(),
		LastReport:   report,
		LastError:    lastError,
		Cycles:       bot.cycles,
		SkippedTicks: bot.skipped,
		UpdatedAt:    time.Now(),
	})
}
