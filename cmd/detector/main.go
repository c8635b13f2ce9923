// Triangular arbitrage detector — consumes a single exchange's BBO tick
// stream, maintains one evaluation worker per candidate triangle, and
// optionally submits realized profits as fill-or-kill orders.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires every component, waits for SIGINT/SIGTERM
//	internal/quant             — step/tick quantization (the exchange-compatibility grid)
//	internal/arbitrage         — Leg, LegResult, Triangle, Profit: the detection core
//	internal/topology          — enumerates every valid triangle from (universe, start asset, catalog)
//	internal/bus               — single-producer, many-consumer BBO tick broadcast
//	internal/detector          — owns topology + bus + one worker goroutine per triangle
//	internal/catalog           — reference-data + instrument-list REST clients (topology's two gates)
//	internal/feed              — live BBO WebSocket feed, auto-reconnecting
//	internal/ordering          — FOK order submission + residual-balance reconciliation
//	internal/persistence       — Postgres sink for realized profits
//	internal/exchange          — shared HMAC auth and rate limiting for trading endpoints
//
// Data flow: feed.WSFeed -> detector.Executor.Ingest -> bus.TickBus -> one
// worker per triangle -> fanned out to ordering.Sink and persistence.Store.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"triarb-detector/internal/arbitrage"
	"triarb-detector/internal/catalog"
	"triarb-detector/internal/config"
	"triarb-detector/internal/detector"
	"triarb-detector/internal/exchange"
	"triarb-detector/internal/feed"
	"triarb-detector/internal/ordering"
	"triarb-detector/internal/persistence"
	"triarb-detector/internal/topology"
	"triarb-detector/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("ARB_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(*cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	universe := make([]types.Asset, len(cfg.Universe))
	for i, a := range cfg.Universe {
		universe[i] = types.Asset(a)
	}

	refClient := catalog.NewReferenceDataClient(cfg.Catalog.ReferenceDataURL)
	listClient := catalog.NewInstrumentListClient(cfg.Catalog.InstrumentListURL)

	topo, err := topology.Build(ctx, logger, cfg.Exchange, types.Asset(cfg.StartAsset), universe, listClient, refClient)
	if err != nil {
		logger.Error("failed to build topology", "error", err)
		os.Exit(1)
	}
	logger.Info("topology built", "triangles", len(topo), "universe_size", len(universe))

	exec := detector.New(detector.Config{
		QtyInitial:    cfg.Detector.QtyInitial,
		ScaleEnabled:  cfg.Detector.ScaleEnabled,
		TickBusBuffer: cfg.Detector.TickBusBuffer,
	}, topo, logger)
	exec.Start(ctx)

	wsFeed := feed.New(cfg.Feed.WSURL, logger)
	for _, tri := range topo {
		wsFeed.Subscribe(tri.InstrumentSet())
	}
	go func() {
		if err := wsFeed.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("feed error", "error", err)
		}
	}()
	go pumpTicks(ctx, wsFeed, exec)

	wireProfitConsumers(ctx, cfg, exec.Profits(), refClient, logger)

	logger.Info("detector started",
		"exchange", cfg.Exchange,
		"start_asset", cfg.StartAsset,
		"triangles", exec.TriangleCount(),
		"ordering_enabled", cfg.Ordering.Enabled,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	cancel()
	wsFeed.Close()
	exec.Wait()
	logger.Info("shutdown complete")
}

// wireProfitConsumers fans the detector's profit channel out to whichever
// downstream sinks are configured: the ordering sink (if enabled) and the
// Postgres store (if a DSN is configured). At least one consumer always
// drains the channel so the detector never blocks on a full profit channel.
func wireProfitConsumers(ctx context.Context, cfg *config.Config, profits <-chan arbitrage.Profit, refClient *catalog.ReferenceDataClient, logger *slog.Logger) {
	var store *persistence.Store
	if cfg.Database.DSN != "" {
		s, err := persistence.Open(ctx, cfg.Database.DSN, logger)
		if err != nil {
			logger.Error("failed to open profit store, continuing without persistence", "error", err)
		} else {
			store = s
		}
	}

	var sink *ordering.Sink
	if cfg.Ordering.Enabled {
		auth, err := exchange.NewAuth(*cfg)
		if err != nil {
			logger.Error("failed to build trading auth, ordering disabled", "error", err)
		} else {
			limits := exchange.LimitsFromConfig(cfg.RateLimits)
			client := ordering.NewExchangeClient(cfg.API.BaseURL, auth, limits, cfg.DryRun, logger)
			sink = ordering.NewSink(client, refClient, types.Asset(cfg.StartAsset), cfg.Ordering.ReconcileResiduals, logger)
		}
	}

	switch {
	case store != nil && sink != nil:
		a, b := fanOut(profits)
		go store.Drain(ctx, a)
		go sink.Run(ctx, b)
	case store != nil:
		go store.Drain(ctx, profits)
	case sink != nil:
		go sink.Run(ctx, profits)
	default:
		go drain(ctx, profits)
	}
}

// fanOut duplicates a profit stream onto two independently buffered
// channels so two consumers can each drain it at their own pace. Consuming
// is non-blocking against a full downstream channel — a slow consumer only
// drops its own copy, never the other's.
func fanOut(in <-chan arbitrage.Profit) (<-chan arbitrage.Profit, <-chan arbitrage.Profit) {
	a := make(chan arbitrage.Profit, 256)
	b := make(chan arbitrage.Profit, 256)
	go func() {
		defer close(a)
		defer close(b)
		for p := range in {
			select {
			case a <- p:
			default:
			}
			select {
			case b <- p:
			default:
			}
		}
	}()
	return a, b
}

func drain(ctx context.Context, profits <-chan arbitrage.Profit) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-profits:
			if !ok {
				return
			}
		}
	}
}

func pumpTicks(ctx context.Context, wsFeed *feed.WSFeed, exec *detector.Executor) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-wsFeed.Ticks():
			if !ok {
				return
			}
			exec.Ingest(tick)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
