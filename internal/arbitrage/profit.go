package arbitrage

import (
	"time"

	"github.com/google/uuid"

	"triarb-detector/pkg/types"
)

// Profit is the outcome of a completed three-leg walk. Profit is
// denominated in the starting asset.
type Profit struct {
	Name                    string
	Results                 [3]LegResult
	TickTimestamp           float64
	TickReceivedTimestampMs int64
	CreatedAt               time.Time
	UUID                    uuid.UUID
}

// newProfit stamps TickTimestamp/TickReceivedTimestampMs from the triggering
// tick, not from any one leg's cached BBO — the triggering tick is what
// caused this evaluation, and may belong to a leg other than leg 0.
func newProfit(name string, results [3]LegResult, tick types.BBOTick) Profit {
	return Profit{
		Name:                    name,
		Results:                 results,
		TickTimestamp:           tick.MarketDataTimestamp,
		TickReceivedTimestampMs: tick.ReceivedTimestampMs,
		CreatedAt:               time.Now(),
		UUID:                    uuid.New(),
	}
}

// Profit is results[2].qty_out - results[0].qty_in, the net gain (or loss)
// in the starting asset over the full cycle.
func (p Profit) Profit() float64 {
	return p.Results[2].QtyOut - p.Results[0].QtyIn
}

// Distance is the staleness spread, in seconds, between the ticks that fed
// the last and the first leg: results[2].TickTimestamp minus
// results[0].TickTimestamp. It is negative when leg 0's tick is the newer.
func (p Profit) Distance() float64 {
	return p.Results[2].TickTimestamp - p.Results[0].TickTimestamp
}

// LatencyMs is the time between the triggering tick's arrival and this
// Profit's construction.
func (p Profit) LatencyMs() int64 {
	return p.CreatedAt.UnixMilli() - p.TickReceivedTimestampMs
}

// IsValidOrdering reports whether every leg's result is individually
// executable: within its [min_qty, max_qty] band and at or under the
// observed market depth.
func (p Profit) IsValidOrdering() bool {
	for _, r := range p.Results {
		if !r.IsValidOrdering() {
			return false
		}
	}
	return true
}

// AssetList returns the cycle's assets in leg order, starting asset first:
// [Results[0].Source, Results[0].Target, Results[1].Target].
func (p Profit) AssetList() []string {
	return []string{
		string(p.Results[0].Source),
		string(p.Results[0].Target),
		string(p.Results[1].Target),
	}
}
