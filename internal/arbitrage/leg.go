// Package arbitrage implements the detection core: one directed Leg of a
// cycle, the immutable LegResult of evaluating it, the three-leg Triangle
// that chains them, and the Profit a successful chain produces.
package arbitrage

import (
	"errors"

	"github.com/google/uuid"

	"triarb-detector/internal/quant"
	"triarb-detector/pkg/types"
)

// Readiness errors returned by Leg.ReadinessError. ErrNotReady means the leg
// has never received a tick; each of the others names the exact BBO field
// that failed the strictly-positive check.
var (
	ErrNotReady      = errors.New("leg: never received a tick")
	ErrInvalidAsk    = errors.New("leg: invalid ask price")
	ErrInvalidBid    = errors.New("leg: invalid bid price")
	ErrInvalidAskQty = errors.New("leg: invalid ask qty")
	ErrInvalidBidQty = errors.New("leg: invalid bid qty")
)

// Leg is one directed edge of an arbitrage cycle: trading Source for Target
// via InstrumentID at Side. It is constructed once by the topology builder
// and mutated only by its owning Triangle on tick update.
type Leg struct {
	Source       types.Asset
	Target       types.Asset
	Side         types.Side
	InstrumentID string
	ExchangeCode string
	Fee          types.Fee

	ready   bool
	lastBBO types.BBOTick
}

// NewLeg constructs a Leg with zeroed market fields and the default fee.
// ready is false until the first Update.
func NewLeg(source, target types.Asset, side types.Side, instrumentID, exchangeCode string) *Leg {
	return &Leg{
		Source:       source,
		Target:       target,
		Side:         side,
		InstrumentID: instrumentID,
		ExchangeCode: exchangeCode,
		Fee:          types.DefaultFee,
	}
}

// Update copies the tick's fields into the leg's cache and marks it ready.
// No validation is performed here; validity is checked per-evaluation by
// ReadinessError.
func (l *Leg) Update(tick types.BBOTick) {
	l.lastBBO = tick
	l.ready = true
}

// Ready reports whether the leg has ever received a tick. It does not by
// itself mean the leg's current tick is usable — see ReadinessError.
func (l *Leg) Ready() bool {
	return l.ready
}

// ReadinessError returns ErrNotReady if the leg has never received a tick,
// and otherwise checks the current BBO cache for strictly-positive ask/bid
// price and quantity. Returns nil if all four fields pass.
func (l *Leg) ReadinessError() error {
	if !l.ready {
		return ErrNotReady
	}
	if l.lastBBO.AskPrice <= 0 {
		return ErrInvalidAsk
	}
	if l.lastBBO.BidPrice <= 0 {
		return ErrInvalidBid
	}
	if l.lastBBO.AskQty <= 0 {
		return ErrInvalidAskQty
	}
	if l.lastBBO.BidQty <= 0 {
		return ErrInvalidBidQty
	}
	return nil
}

// Evaluate walks qtyIn through this leg and returns the resulting
// LegResult. It is a pure function of (leg state, qtyIn) except for the
// freshly minted UUID.
//
// BUY spends Source (quote) to acquire Target (base): the ask price and
// ask depth gate the fill, and the fee is charged on the base quantity
// received. SELL spends Source (base) for Target (quote): the bid price
// and bid depth gate the fill, and the fee is charged on the quote
// notional received — this asymmetry matches how exchanges charge taker
// fees (base-denominated on a buy, quote-denominated on a sell).
func (l *Leg) Evaluate(qtyIn float64) LegResult {
	tick := l.lastBBO

	var price, qtyToExecute, fee, qtyOut, marketQty float64

	switch l.Side {
	case types.BUY:
		price = quant.RoundDownToGrid(tick.AskPrice, tick.TickSize)
		qtyToExecute = quant.RoundDownToGrid(qtyIn/price, tick.StepSize)
		fee = qtyToExecute * l.Fee.Rate
		qtyOut = qtyToExecute - fee
		marketQty = tick.AskQty
	case types.SELL:
		qtyToExecute = quant.RoundDownToGrid(qtyIn, tick.StepSize)
		price = quant.RoundDownToGrid(tick.BidPrice, tick.TickSize)
		gross := qtyToExecute * price
		fee = gross * l.Fee.Rate
		qtyOut = gross - fee
		marketQty = tick.BidQty
	}

	return LegResult{
		Source:        l.Source,
		Target:        l.Target,
		Side:          l.Side,
		InstrumentID:  l.InstrumentID,
		ExchangeCode:  l.ExchangeCode,
		QtyIn:         qtyIn,
		QtyToExecute:  qtyToExecute,
		QtyOut:        qtyOut,
		Price:         price,
		Fee:           fee,
		MarketQty:     marketQty,
		StepSize:      tick.StepSize,
		TickSize:      tick.TickSize,
		MinQty:        tick.MinQty,
		MaxQty:        tick.MaxQty,
		TickTimestamp: tick.MarketDataTimestamp,
		ReceivedAtMs:  tick.ReceivedTimestampMs,
		UUID:          uuid.New(),
	}
}

// LegResult is the immutable outcome of evaluating a Leg against one input
// quantity.
type LegResult struct {
	Source       types.Asset
	Target       types.Asset
	Side         types.Side
	InstrumentID string
	ExchangeCode string

	QtyIn        float64
	QtyToExecute float64
	QtyOut       float64
	Price        float64
	Fee          float64
	MarketQty    float64

	StepSize float64
	TickSize float64
	MinQty   float64
	MaxQty   float64

	TickTimestamp float64
	ReceivedAtMs  int64

	// UUID is a fresh v4 minted per evaluation, an observability handle for
	// tracing one evaluation through the ordering sink — not a dedup key.
	UUID uuid.UUID
}

// IsValidOrdering reports whether this leg's executed quantity both falls
// within the instrument's [MinQty, MaxQty] band and does not exceed the
// depth observed on the relevant side of the book.
func (r LegResult) IsValidOrdering() bool {
	if r.QtyToExecute < r.MinQty || r.QtyToExecute > r.MaxQty {
		return false
	}
	return r.QtyToExecute <= r.MarketQty
}
