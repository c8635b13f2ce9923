// Package topology enumerates every valid triangular cycle over a universe
// of assets and resolves each directed edge to a concrete exchange
// instrument and side.
package topology

import (
	"context"
	"fmt"
	"log/slog"

	"triarb-detector/internal/arbitrage"
	"triarb-detector/pkg/types"
)

// ReferenceData is the authoritative catalog consulted as the second gate
// during topology construction.
type ReferenceData interface {
	Exists(ctx context.Context, instrumentID string) (bool, error)
}

// InstrumentLister is the persisted instrument-list service consulted as
// the first gate; it resolves which of the two candidate instrument IDs
// for a directed edge is actually listed, and therefore which side applies.
type InstrumentLister interface {
	List(ctx context.Context) (map[string]struct{}, error)
}

// Build enumerates every unordered 3-subset of universe, walks its six
// permutations, keeps the ones rooted at start, and resolves each directed
// edge against db (first gate, determines side) and ref (second gate,
// authoritative existence check). Permutations that cannot be fully
// resolved are dropped silently with a warning — this is expected to
// happen routinely as a universe grows past the instruments an exchange
// actually lists.
func Build(ctx context.Context, logger *slog.Logger, exchange string, start types.Asset, universe []types.Asset, db InstrumentLister, ref ReferenceData) ([]*arbitrage.Triangle, error) {
	dbInstruments, err := db.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("topology: list db instruments: %w", err)
	}

	var triangles []*arbitrage.Triangle

	for _, subset := range threeSubsets(universe) {
		for _, perm := range permutations(subset) {
			if perm[0] != start {
				continue
			}

			tri, ok := resolveTriangle(ctx, logger, exchange, perm, dbInstruments, ref)
			if ok {
				triangles = append(triangles, tri)
			}
		}
	}

	return triangles, nil
}

func resolveTriangle(ctx context.Context, logger *slog.Logger, exchange string, perm [3]types.Asset, dbInstruments map[string]struct{}, ref ReferenceData) (*arbitrage.Triangle, bool) {
	edges := [3][2]types.Asset{
		{perm[0], perm[1]},
		{perm[1], perm[2]},
		{perm[2], perm[0]},
	}

	legs := make([]*arbitrage.Leg, 0, 3)

	for _, edge := range edges {
		a, b := edge[0], edge[1]
		idA := types.InstrumentID(exchange, a, b)
		idB := types.InstrumentID(exchange, b, a)

		var (
			side         types.Side
			instrumentID string
			exchangeCode string
		)

		switch {
		case has(dbInstruments, idA):
			side, instrumentID, exchangeCode = types.SELL, idA, fmt.Sprintf("%s%s", a, b)
		case has(dbInstruments, idB):
			side, instrumentID, exchangeCode = types.BUY, idB, fmt.Sprintf("%s%s", b, a)
		default:
			logger.Warn("topology: no listed instrument for edge", "from", a, "to", b)
			return nil, false
		}

		exists, err := ref.Exists(ctx, instrumentID)
		if err != nil {
			logger.Warn("topology: reference data lookup failed", "instrument_id", instrumentID, "error", err)
			return nil, false
		}
		if !exists {
			logger.Warn("topology: instrument not in reference catalog", "instrument_id", instrumentID)
			return nil, false
		}

		legs = append(legs, arbitrage.NewLeg(a, b, side, instrumentID, exchangeCode))
	}

	tri, err := arbitrage.NewTriangle(legs[0], legs[1], legs[2])
	if err != nil {
		logger.Warn("topology: rejected malformed triangle", "error", err)
		return nil, false
	}
	return tri, true
}

func has(m map[string]struct{}, key string) bool {
	_, ok := m[key]
	return ok
}

// threeSubsets returns every unordered 3-element subset of universe.
func threeSubsets(universe []types.Asset) [][3]types.Asset {
	var out [][3]types.Asset
	n := len(universe)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				out = append(out, [3]types.Asset{universe[i], universe[j], universe[k]})
			}
		}
	}
	return out
}

// permutations returns all 6 orderings of a 3-element subset.
func permutations(s [3]types.Asset) [][3]types.Asset {
	x, y, z := s[0], s[1], s[2]
	return [][3]types.Asset{
		{x, y, z},
		{x, z, y},
		{y, x, z},
		{y, z, x},
		{z, x, y},
		{z, y, x},
	}
}
