// Package feed implements the live market-data WebSocket feed: a stream of
// BBO ticks for every instrument the operator cares about, structured like
// the teacher's exchange.WSFeed (auto-reconnect with exponential backoff, a
// typed output channel, a read-deadline watchdog).
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"triarb-detector/pkg/types"
)

const (
	pingInterval     = 15 * time.Second
	readTimeout      = 45 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 5 * time.Second
	tickBufferSize   = 1024
)

// tickDTO is the wire shape of one BBO message as published by the feed.
type tickDTO struct {
	InstrumentID        string  `json:"instrument_id"`
	AskPrice            float64 `json:"ask_price"`
	AskQty              float64 `json:"ask_qty"`
	BidPrice            float64 `json:"bid_price"`
	BidQty              float64 `json:"bid_qty"`
	MinQty              float64 `json:"min_qty"`
	MaxQty              float64 `json:"max_qty"`
	MinPrice            float64 `json:"min_price"`
	MaxPrice            float64 `json:"max_price"`
	StepSize            float64 `json:"step_size"`
	TickSize            float64 `json:"tick_size"`
	MarketDataTimestamp float64 `json:"marketdata_timestamp"`
}

func (d tickDTO) toTick(receivedAtMs int64) types.BBOTick {
	return types.BBOTick{
		InstrumentID:        d.InstrumentID,
		AskPrice:            d.AskPrice,
		AskQty:              d.AskQty,
		BidPrice:            d.BidPrice,
		BidQty:              d.BidQty,
		MinQty:              d.MinQty,
		MaxQty:              d.MaxQty,
		MinPrice:            d.MinPrice,
		MaxPrice:            d.MaxPrice,
		StepSize:            d.StepSize,
		TickSize:            d.TickSize,
		MarketDataTimestamp: d.MarketDataTimestamp,
		ReceivedTimestampMs: receivedAtMs,
	}
}

// WSFeed manages a single WebSocket connection to the exchange's public BBO
// stream. It auto-reconnects with exponential backoff and re-subscribes to
// every tracked instrument on reconnection.
type WSFeed struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	ticks chan types.BBOTick

	logger *slog.Logger
}

// New creates a WSFeed against a venue's public market-data WebSocket URL.
func New(wsURL string, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		ticks:      make(chan types.BBOTick, tickBufferSize),
		logger:     logger.With("component", "feed"),
	}
}

// Ticks returns the channel of parsed BBO ticks. Consumers should pump this
// into detector.Executor.Ingest.
func (f *WSFeed) Ticks() <-chan types.BBOTick {
	return f.ticks
}

// Subscribe adds instrument IDs to the tracked set and, if connected, sends
// a live subscribe message.
func (f *WSFeed) Subscribe(instrumentIDs []string) error {
	f.subscribedMu.Lock()
	for _, id := range instrumentIDs {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	return f.writeJSON(map[string]any{
		"op":      "subscribe",
		"symbols": instrumentIDs,
	})
}

// Run connects and maintains the WebSocket connection with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("feed disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close closes the underlying connection, if any.
func (f *WSFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *WSFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("feed connected", "url", f.url)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatch(msg)
	}
}

func (f *WSFeed) resubscribeAll() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	if len(ids) == 0 {
		return nil
	}
	return f.writeJSON(map[string]any{
		"op":      "subscribe",
		"symbols": ids,
	})
}

func (f *WSFeed) dispatch(data []byte) {
	var dto tickDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		f.logger.Debug("ignoring non-tick feed message", "data", string(data))
		return
	}
	if dto.InstrumentID == "" {
		return
	}

	tick := dto.toTick(time.Now().UnixMilli())
	select {
	case f.ticks <- tick:
	default:
		f.logger.Warn("tick channel full, dropping tick", "instrument_id", tick.InstrumentID)
	}
}

func (f *WSFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *WSFeed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *WSFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
