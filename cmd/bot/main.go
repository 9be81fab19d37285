package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-maker-simulator/internal/bot"
	"market-maker-simulator/internal/database"
	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/exchange/deversifi"
	"market-maker-simulator/internal/exchange/luno"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/platform/config"
	"market-maker-simulator/internal/platform/logger"
	"market-maker-simulator/internal/platform/metrics"
	"market-maker-simulator/internal/server"
	"market-maker-simulator/internal/trader"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	loggers, err := logger.New(cfg.LogDir)
	if err != nil {
		return err
	}
	defer loggers.Sync()

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l, err := ledger.New(cfg.InitialBalancesValue())
	if err != nil {
		return err
	}
	engine, err := trader.NewEngine(l, cfg.TraderParams(), rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), loggers.App)
	if err != nil {
		return err
	}

	source := newSource(ctx, cfg, loggers.App)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)
	hub := server.NewHub(loggers.App)
	handlers := []bot.ReportHandler{bot.MetricsHandler(m), hub}

	var journal database.Service
	if cfg.Journal.Path != "" {
		journal, err = database.New(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		defer journal.Close()
		handlers = append(handlers, bot.JournalHandler(journal, loggers.App))
	}

	if cfg.Discord.WebhookUrl != "" {
		handlers = append(handlers, bot.NewDiscordAlerter(cfg.Discord.WebhookUrl, loggers.App))
	}

	marketMaker := bot.New(source, l, engine, bot.Options{
		Pair:            cfg.Pair,
		RefreshInterval: time.Duration(cfg.RefreshInterval),
		DisplayInterval: time.Duration(cfg.DisplayInterval),
		FetchTimeout:    cfg.FetchTimeoutValue(),
	}, loggers, m, handlers...)

	if cfg.Server.Enabled {
		fiberServer := server.New(marketMaker.View(), journal, hub, registry)
		fiberServer.RegisterFiberRoutes()

		go func() {
			if err := fiberServer.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				loggers.App.Error("http server error", zap.Error(err))
			}
		}()
		defer gracefulShutdown(fiberServer, loggers.App)
	}

	if err := marketMaker.Run(ctx); err != nil {
		loggers.App.Error("Bot halted", zap.Error(err))
		return err
	}
	loggers.App.Info("Shutting down gracefully")
	return nil
}

func newSource(ctx context.Context, cfg *config.Config, log *zap.Logger) domain.MarketSource {
	switch cfg.SourceEnum() {
	case domain.Luno:
		return luno.CreateClient(cfg.Luno.ApiKey, cfg.Luno.ApiSecret, log)
	case domain.LunoStream:
		stream := luno.CreateStream(cfg.Luno.ApiKey, cfg.Luno.ApiSecret, cfg.Pair, log)
		go stream.Run(ctx)
		return stream
	default:
		return deversifi.CreateClient(deversifi.Options{
			BaseUrl:           cfg.Deversifi.BaseUrl,
			Depth:             cfg.Deversifi.Depth,
			RequestsPerSecond: cfg.Deversifi.RequestsPerSecond,
		}, log)
	}
}

func gracefulShutdown(fiberServer *server.FiberServer, log *zap.Logger) {
	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(ctx); err != nil {
		log.Error("Server forced to shutdown with error", zap.Error(err))
	}
	log.Info("Server exiting")
}
