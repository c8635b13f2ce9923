package arbitrage

import (
	"fmt"
	"strings"

	"triarb-detector/pkg/types"
)

// Triangle is an ordered three-leg cycle that returns to its starting
// asset: Leg0.Source == Leg2.Target == start asset, and
// Legi.Target == Legi+1.Source for i in {0,1}. It owns its three legs
// exclusively; exactly one worker goroutine ever touches a given Triangle,
// so no internal locking is needed.
type Triangle struct {
	legs [3]*Leg
	name string
}

// NewTriangle validates the closure invariant and returns a Triangle
// wrapping the three legs in order.
func NewTriangle(l0, l1, l2 *Leg) (*Triangle, error) {
	legs := [3]*Leg{l0, l1, l2}
	if legs[0].Source != legs[2].Target {
		return nil, fmt.Errorf("triangle: leg0.source %q != leg2.target %q", legs[0].Source, legs[2].Target)
	}
	if legs[0].Target != legs[1].Source {
		return nil, fmt.Errorf("triangle: leg0.target %q != leg1.source %q", legs[0].Target, legs[1].Source)
	}
	if legs[1].Target != legs[2].Source {
		return nil, fmt.Errorf("triangle: leg1.target %q != leg2.source %q", legs[1].Target, legs[2].Source)
	}

	names := make([]string, 3)
	for i, l := range legs {
		names[i] = fmt.Sprintf("%s%s", l.Side, l.ExchangeCode)
	}

	return &Triangle{
		legs: legs,
		name: strings.Join(names, ":"),
	}, nil
}

// Name is Leg0.name:Leg1.name:Leg2.name.
func (t *Triangle) Name() string {
	return t.name
}

// InstrumentSet returns the triangle's distinct instrument IDs, 1 to 3 of
// them, deduplicated while preserving first-seen order.
func (t *Triangle) InstrumentSet() []string {
	seen := make(map[string]struct{}, 3)
	out := make([]string, 0, 3)
	for _, l := range t.legs {
		if _, ok := seen[l.InstrumentID]; ok {
			continue
		}
		seen[l.InstrumentID] = struct{}{}
		out = append(out, l.InstrumentID)
	}
	return out
}

// HasInstrument reports whether instrumentID is referenced by any leg.
func (t *Triangle) HasInstrument(instrumentID string) bool {
	for _, l := range t.legs {
		if l.InstrumentID == instrumentID {
			return true
		}
	}
	return false
}

// Evaluate updates every leg matching tick.InstrumentID, then walks
// qtyInitial through the three legs in order. If scaleEnabled, the largest
// qty_to_execute/market_qty ratio among the legs that fail IsValidOrdering
// is taken; when it exceeds 1, the input is divided by it and the chain is
// re-walked exactly once more. The rescale is bounded to a single extra pass regardless of
// scaleEnabled — the recursion the original design describes is one level
// deep by construction, so it is written here as a loop rather than an
// actual recursive call.
func (t *Triangle) Evaluate(tick types.BBOTick, qtyInitial float64, scaleEnabled bool) (Profit, bool) {
	for _, l := range t.legs {
		if l.InstrumentID == tick.InstrumentID {
			l.Update(tick)
		}
	}

	results, ok := t.walk(qtyInitial)
	if !ok {
		return Profit{}, false
	}

	if scaleEnabled {
		maxRatio := 0.0
		for _, r := range results {
			if r.IsValidOrdering() {
				continue
			}
			if ratio := r.QtyToExecute / r.MarketQty; ratio > maxRatio {
				maxRatio = ratio
			}
		}

		if maxRatio > 1 {
			rescaled, ok := t.walk(qtyInitial / maxRatio)
			if !ok {
				return Profit{}, false
			}
			results = rescaled
		}
	}

	return newProfit(t.name, results, tick), true
}

// walk threads qty through the three legs in order, skipping (not failing)
// any leg that is not ready. It returns ok=false if fewer than three
// results accumulated.
func (t *Triangle) walk(qty float64) ([3]LegResult, bool) {
	var results [3]LegResult
	count := 0

	for _, l := range t.legs {
		if l.ReadinessError() != nil {
			continue
		}
		r := l.Evaluate(qty)
		if count < 3 {
			results[count] = r
		}
		count++
		qty = r.QtyOut
	}

	if count != 3 {
		return results, false
	}
	return results, true
}
