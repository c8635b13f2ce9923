// Package detector owns the topology, the tick bus, and one worker goroutine
// per triangle. It is the DetectorExecutor of spec.md §4.5/§5: ticks flow in
// through Ingest, profits flow out through Profits(), and every triangle is
// evaluated independently with no locking between workers.
package detector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"triarb-detector/internal/arbitrage"
	"triarb-detector/internal/bus"
	"triarb-detector/pkg/types"
)

// Config tunes the per-tick evaluation every worker performs.
type Config struct {
	// QtyInitial is the starting quantity, denominated in the triangle's
	// start asset, threaded through leg 0 on every evaluation.
	QtyInitial float64
	// ScaleEnabled turns on the auto-scaling rule (spec.md §4.3 step 3).
	ScaleEnabled bool
	// TickBusBuffer sizes each worker's subscriber channel on the TickBus
	// (spec.md §4.5 recommends 1024). <= 0 falls back to bus.DefaultBufferSize.
	TickBusBuffer int
	// ProfitChannelBuffer sizes the MPSC profit output channel. The
	// detector never blocks on this channel — see emitProfit.
	ProfitChannelBuffer int
}

// Executor owns an immutable topology, the TickBus producer handle, and the
// profit output channel all triangle workers publish to.
type Executor struct {
	cfg    Config
	bus    *bus.TickBus
	topo   []*arbitrage.Triangle
	logger *slog.Logger

	profits chan arbitrage.Profit

	dropped atomic.Int64

	wg sync.WaitGroup
}

// New constructs an Executor over an already-built topology. The topology is
// immutable after this call; each triangle is handed to exactly one worker
// at Start.
func New(cfg Config, topo []*arbitrage.Triangle, logger *slog.Logger) *Executor {
	if cfg.ProfitChannelBuffer <= 0 {
		cfg.ProfitChannelBuffer = 256
	}
	return &Executor{
		cfg:     cfg,
		bus:     bus.New(cfg.TickBusBuffer),
		topo:    topo,
		logger:  logger.With("component", "detector"),
		profits: make(chan arbitrage.Profit, cfg.ProfitChannelBuffer),
	}
}

// Profits returns the channel every profitable evaluation (Profit() > 0) is
// published to. Consumers (the ordering sink, persistence) must drain it;
// the detector drops and logs on a full channel rather than block.
func (e *Executor) Profits() <-chan arbitrage.Profit {
	return e.profits
}

// TriangleCount returns the number of triangles in the topology.
func (e *Executor) TriangleCount() int {
	return len(e.topo)
}

// DroppedProfits returns the number of profits discarded because the output
// channel was full when a worker tried to emit.
func (e *Executor) DroppedProfits() int64 {
	return e.dropped.Load()
}

// Start spawns one worker goroutine per triangle, each with exclusive
// ownership of its Triangle and its own TickBus subscription. Start returns
// immediately; workers run until ctx is cancelled.
func (e *Executor) Start(ctx context.Context) {
	for _, tri := range e.topo {
		tri := tri
		sub := e.bus.Subscribe()
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer e.bus.Unsubscribe(sub)
			e.runWorker(ctx, tri, sub)
		}()
	}
}

// Wait blocks until every worker goroutine spawned by Start has exited.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Ingest is the sole publisher entry point: it broadcasts tick to every
// triangle worker via the TickBus.
func (e *Executor) Ingest(tick types.BBOTick) {
	e.bus.Publish(tick)
}

func (e *Executor) runWorker(ctx context.Context, tri *arbitrage.Triangle, sub *bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-sub.C():
			if !ok {
				return
			}
			if !tri.HasInstrument(tick.InstrumentID) {
				continue
			}
			profit, ok := tri.Evaluate(tick, e.cfg.QtyInitial, e.cfg.ScaleEnabled)
			if !ok {
				continue
			}
			if profit.Profit() <= 0 {
				continue
			}
			e.emitProfit(profit)
		}
	}
}

func (e *Executor) emitProfit(p arbitrage.Profit) {
	select {
	case e.profits <- p:
	default:
		e.dropped.Add(1)
		e.logger.Warn("profit channel full, dropping profit",
			"triangle", p.Name,
			"profit", p.Profit(),
			"dropped_total", e.dropped.Load(),
		)
	}
}
