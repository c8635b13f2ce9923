// Package quant rounds quantities and prices down to an exchange's
// published step/tick grid.
package quant

import (
	"math"
	"strconv"
)

// RoundDownToGrid rounds x down to the nearest multiple of grid.
//
// If grid is NaN, x is returned unchanged (no grid information available).
// If grid == 1.0, the integer part of x is returned. Otherwise the number
// of fractional digits is derived from the textual representation of grid
// (see Decimals) — not by counting its nonzero digits — and x is floored to
// that many decimals. grid is a float64, so that text is the shortest
// decimal form of the float: a trailing zero in an exchange's published
// step/tick string (e.g. "0.00010") is not visible here and does not add a
// decimal.
func RoundDownToGrid(x, grid float64) float64 {
	if math.IsNaN(grid) {
		return x
	}
	if grid == 1.0 {
		return math.Trunc(x)
	}
	d := Decimals(grid)
	scale := math.Pow(10, float64(d))
	return math.Floor(x*scale) / scale
}

// Decimals returns the number of fractional digits implied by the textual
// form of grid as formatted by strconv.FormatFloat(grid, 'f', -1, 64),
// e.g. 0.001 -> 3, 0.0001 -> 4. A float64 keeps no trailing zeros, so a
// grid written as 0.00010 is the same value as 0.0001 and also gives 4.
func Decimals(grid float64) int {
	s := strconv.FormatFloat(grid, 'f', -1, 64)
	return len(s) - 2
}
