package detector

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"triarb-detector/internal/arbitrage"
	"triarb-detector/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildTriangle builds SELL BTC->USDT, BUY USDT->ETH, SELL ETH->BTC.
func buildTriangle(t *testing.T) *arbitrage.Triangle {
	t.Helper()
	l0 := arbitrage.NewLeg("BTC", "USDT", types.SELL, "EX_BTC_USDT", "BTCUSDT")
	l1 := arbitrage.NewLeg("USDT", "ETH", types.BUY, "EX_ETH_USDT", "ETHUSDT")
	l2 := arbitrage.NewLeg("ETH", "BTC", types.SELL, "EX_ETH_BTC", "ETHBTC")
	tri, err := arbitrage.NewTriangle(l0, l1, l2)
	if err != nil {
		t.Fatalf("NewTriangle: %v", err)
	}
	return tri
}

func abundantTick(instrumentID string, ask, bid float64) types.BBOTick {
	return types.BBOTick{
		InstrumentID:        instrumentID,
		AskPrice:            ask,
		AskQty:              math.Inf(1),
		BidPrice:            bid,
		BidQty:              math.Inf(1),
		MinQty:              0,
		MaxQty:              math.Inf(1),
		StepSize:            math.NaN(),
		TickSize:            math.NaN(),
		MarketDataTimestamp: float64(time.Now().Unix()),
		ReceivedTimestampMs: time.Now().UnixMilli(),
	}
}

func TestExecutorRoutesTickOnlyToMatchingTriangle(t *testing.T) {
	t.Parallel()

	tri := buildTriangle(t)
	exec := New(Config{QtyInitial: 1.0, ScaleEnabled: true}, []*arbitrage.Triangle{tri}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)

	// unrelated instrument: must not produce a profit.
	exec.Ingest(abundantTick("UNRELATED", 1, 1))

	select {
	case p := <-exec.Profits():
		t.Fatalf("unexpected profit from unrelated tick: %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExecutorEmitsProfitOnlyWhenPositive(t *testing.T) {
	t.Parallel()

	tri := buildTriangle(t)
	exec := New(Config{QtyInitial: 1.0, ScaleEnabled: true}, []*arbitrage.Triangle{tri}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.Start(ctx)

	// Round numbers whose cycle multiplier is 100 / 1 * 1.01 = 101, so the
	// cycle stays positive even after the default 0.1% fee on each leg.
	exec.Ingest(abundantTick("EX_BTC_USDT", 100, 100))  // sell BTC->USDT @100
	exec.Ingest(abundantTick("EX_ETH_USDT", 1, 1))      // buy USDT->ETH @1
	exec.Ingest(abundantTick("EX_ETH_BTC", 1.01, 1.01)) // sell ETH->BTC @1.01

	select {
	case p := <-exec.Profits():
		if p.Profit() <= 0 {
			t.Fatalf("Profit() = %v, want > 0", p.Profit())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for profit")
	}
}

func TestExecutorStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	tri := buildTriangle(t)
	exec := New(Config{QtyInitial: 1.0}, []*arbitrage.Triangle{tri}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	exec.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		exec.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after context cancellation")
	}
}

func TestExecutorTriangleCount(t *testing.T) {
	t.Parallel()
	tri := buildTriangle(t)
	exec := New(Config{QtyInitial: 1.0}, []*arbitrage.Triangle{tri, tri}, testLogger())
	if exec.TriangleCount() != 2 {
		t.Fatalf("TriangleCount() = %d, want 2", exec.TriangleCount())
	}
}
