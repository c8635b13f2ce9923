// Package types defines the shared vocabulary passed between the catalog,
// feed, detector, and ordering layers: assets, instruments, BBO ticks, and
// the order/side enums used to describe a leg of an arbitrage cycle.
package types

import "fmt"

// ————————————————————————————————————————————————————————————————————————
// Assets and sides
// ————————————————————————————————————————————————————————————————————————

// Asset is an opaque uppercase currency identifier, e.g. "BTC". Equality is
// by bytes; callers are expected to upper-case input at the boundary.
type Asset string

// Side is the direction of a leg: BUY spends the quote asset to acquire the
// base asset, SELL spends the base asset to acquire the quote asset.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

func (s Side) String() string { return string(s) }

// Valid reports whether s is one of the two closed enum values.
func (s Side) Valid() bool { return s == BUY || s == SELL }

// ————————————————————————————————————————————————————————————————————————
// Instruments
// ————————————————————————————————————————————————————————————————————————

// Instrument is an exchange-scoped tradable pair. Identity is
// (Exchange, Base, Quote); ID follows the grammar {EXCHANGE}_{BASE}_{QUOTE},
// uppercase, underscore-separated, e.g. "BINANCE_ETH_BTC".
type Instrument struct {
	ID       string
	Exchange string
	Base     Asset
	Quote    Asset

	StepSize float64 // minimum quantity increment
	TickSize float64 // minimum price increment
	MinQty   float64
	MaxQty   float64
	MinPrice float64
	MaxPrice float64
}

// InstrumentID builds the canonical instrument identifier for a base/quote
// pair on the given exchange.
func InstrumentID(exchange string, base, quote Asset) string {
	return fmt.Sprintf("%s_%s_%s", exchange, base, quote)
}

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// BBOTick is a best-bid/offer snapshot for one instrument. It is immutable
// once constructed; a Leg only trusts values carried on the tick, and the
// tick's StepSize/TickSize override the catalog's static values for any
// quantization performed during that evaluation.
type BBOTick struct {
	InstrumentID string

	AskPrice float64
	AskQty   float64
	BidPrice float64
	BidQty   float64

	MinQty   float64
	MaxQty   float64
	MinPrice float64
	MaxPrice float64
	StepSize float64
	TickSize float64

	// MarketDataTimestamp is the venue-reported event time, seconds with a
	// fractional component.
	MarketDataTimestamp float64
	// ReceivedTimestampMs is the local wall-clock time the tick was read off
	// the wire, in unix milliseconds.
	ReceivedTimestampMs int64
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Fee describes a proportional trading fee. Unit is always "%" in the
// current model — a fraction of quantity or notional, not a fixed amount.
type Fee struct {
	Rate float64
	Unit string
}

// DefaultFee is the fee applied to a newly constructed Leg until overridden.
var DefaultFee = Fee{Rate: 0.001, Unit: "%"}

// LegOrder is the minimal payload the ordering sink needs to submit one leg
// as a fill-or-kill limit order: exchange symbol, direction, limit price,
// and the quantized quantity to execute.
type LegOrder struct {
	ExchangeCode string
	Side         Side
	Price        float64
	Qty          float64
}
