package arbitrage

import (
	"testing"

	"triarb-detector/pkg/types"
)

func TestProfitIdentity(t *testing.T) {
	t.Parallel()

	results := [3]LegResult{
		{QtyIn: 1.0},
		{},
		{QtyOut: 1.02},
	}
	p := newProfit("test", results, types.BBOTick{})

	if got, want := p.Profit(), 0.02; got-want > 1e-12 || want-got > 1e-12 {
		t.Errorf("Profit() = %v, want %v", got, want)
	}
}

func TestProfitDistance(t *testing.T) {
	t.Parallel()

	results := [3]LegResult{
		{TickTimestamp: 100.0},
		{},
		{TickTimestamp: 100.5},
	}
	p := newProfit("test", results, types.BBOTick{})

	if got, want := p.Distance(), 0.5; got != want {
		t.Errorf("Distance() = %v, want %v", got, want)
	}
}

// newProfit must stamp TickTimestamp/TickReceivedTimestampMs from the
// triggering tick, not from leg 0's cached BBO — the tick that triggered
// this evaluation can belong to any of the three legs.
func TestProfitStampedFromTriggeringTickNotLegZero(t *testing.T) {
	t.Parallel()

	results := [3]LegResult{
		{TickTimestamp: 100.0, ReceivedAtMs: 1000},
		{TickTimestamp: 200.0, ReceivedAtMs: 2000},
		{TickTimestamp: 300.0, ReceivedAtMs: 3000},
	}
	triggeringTick := types.BBOTick{
		MarketDataTimestamp: 300.0,
		ReceivedTimestampMs: 3000,
	}
	p := newProfit("test", results, triggeringTick)

	if p.TickTimestamp != triggeringTick.MarketDataTimestamp {
		t.Errorf("TickTimestamp = %v, want triggering tick's %v", p.TickTimestamp, triggeringTick.MarketDataTimestamp)
	}
	if p.TickReceivedTimestampMs != triggeringTick.ReceivedTimestampMs {
		t.Errorf("TickReceivedTimestampMs = %v, want triggering tick's %v", p.TickReceivedTimestampMs, triggeringTick.ReceivedTimestampMs)
	}
	if p.TickTimestamp == results[0].TickTimestamp {
		t.Error("TickTimestamp must not be taken from leg 0's cached BBO")
	}
}

func TestProfitIsValidOrderingRequiresAllLegs(t *testing.T) {
	t.Parallel()

	valid := LegResult{QtyToExecute: 1, MinQty: 0, MaxQty: 10, MarketQty: 10}
	invalid := LegResult{QtyToExecute: 100, MinQty: 0, MaxQty: 10, MarketQty: 10}

	p := newProfit("test", [3]LegResult{valid, valid, valid}, types.BBOTick{})
	if !p.IsValidOrdering() {
		t.Error("expected all-valid profit to report valid ordering")
	}

	p2 := newProfit("test", [3]LegResult{valid, invalid, valid}, types.BBOTick{})
	if p2.IsValidOrdering() {
		t.Error("expected one invalid leg to make the whole ordering invalid")
	}
}

func TestProfitAssetList(t *testing.T) {
	t.Parallel()

	results := [3]LegResult{
		{Source: "BTC", Target: "USDT"},
		{Source: "USDT", Target: "ETH"},
		{Source: "ETH", Target: "BTC"},
	}
	p := newProfit("test", results, types.BBOTick{})

	got := p.AssetList()
	want := []string{"BTC", "USDT", "ETH"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AssetList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
