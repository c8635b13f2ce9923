package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWSFeedParsesTicks(t *testing.T) {
	t.Parallel()

	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// drain the subscribe message.
		conn.ReadMessage()

		payload, _ := json.Marshal(map[string]any{
			"instrument_id":        "BINANCE_ETH_BTC",
			"ask_price":            0.07,
			"ask_qty":              10.0,
			"bid_price":            0.069,
			"bid_qty":              12.0,
			"step_size":            0.001,
			"tick_size":            0.00001,
			"marketdata_timestamp": 1700000000.5,
		})
		conn.WriteMessage(websocket.TextMessage, payload)

		// keep the connection open until the test tears it down.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := New(wsURL, testLogger())
	f.Subscribe([]string{"BINANCE_ETH_BTC"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go f.Run(ctx)

	select {
	case tick := <-f.Ticks():
		if tick.InstrumentID != "BINANCE_ETH_BTC" {
			t.Fatalf("InstrumentID = %q, want BINANCE_ETH_BTC", tick.InstrumentID)
		}
		if tick.AskPrice != 0.07 || tick.BidPrice != 0.069 {
			t.Fatalf("unexpected prices: %+v", tick)
		}
		if tick.ReceivedTimestampMs == 0 {
			t.Fatal("ReceivedTimestampMs not stamped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}
}

func TestWSFeedIgnoresMalformedMessages(t *testing.T) {
	t.Parallel()

	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"not_a_tick": true}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := New(wsURL, testLogger())
	f.Subscribe([]string{"BINANCE_ETH_BTC"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case tick := <-f.Ticks():
		t.Fatalf("unexpected tick from malformed message: %+v", tick)
	case <-time.After(200 * time.Millisecond):
	}
}
