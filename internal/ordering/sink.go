// Package ordering implements the sink described but not specified by
// spec.md §6: it consumes realized profits from the detector and, for every
// one with a valid ordering, submits the three legs as fill-or-kill limit
// orders. It also supplements a feature the Rust original
// (arbitrage_ordering.rs) has and the distilled spec drops: reconciling
// residual non-start-asset balances back to the start asset after a cycle.
package ordering

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"triarb-detector/internal/arbitrage"
	"triarb-detector/internal/exchange"
	"triarb-detector/internal/quant"
	"triarb-detector/pkg/types"
)

const defaultSleepBetweenTransactions = 10 * time.Microsecond

// sleepBetweenTransactions reads SLEEP_BETWEEN_TRANSACTIONS (microseconds)
// once, matching the Rust original's env::var fallback: unset or
// unparseable yields the default. This is the only environment variable the
// core-adjacent code reads — everything else flows through internal/config.
func sleepBetweenTransactions() time.Duration {
	raw := os.Getenv("SLEEP_BETWEEN_TRANSACTIONS")
	if raw == "" {
		return defaultSleepBetweenTransactions
	}
	us, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || us < 0 {
		return defaultSleepBetweenTransactions
	}
	return time.Duration(us) * time.Microsecond
}

// ExchangeClient submits individual fill-or-kill orders and fetches free
// balances, following the teacher's Client.PostOrders batch pattern but with
// single-order FOK submission per spec.md semantics.
type ExchangeClient struct {
	http   *resty.Client
	auth   *exchange.Auth
	rl     *exchange.RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewExchangeClient builds a REST client for order submission and balance
// queries. limits configures the per-category token buckets; pass
// exchange.DefaultLimits() (or exchange.LimitsFromConfig applied to
// Config.RateLimits) for the exchange's published budgets.
func NewExchangeClient(baseURL string, auth *exchange.Auth, limits map[exchange.Category]exchange.Limit, dryRun bool, logger *slog.Logger) *ExchangeClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(0) // FOK orders must not be silently retried

	return &ExchangeClient{
		http:   httpClient,
		auth:   auth,
		rl:     exchange.NewRateLimiter(limits),
		dryRun: dryRun,
		logger: logger.With("component", "ordering_client"),
	}
}

// fokOrderRequest is the wire payload for a single fill-or-kill limit order.
type fokOrderRequest struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Type        string `json:"type"`
	TimeInForce string `json:"time_in_force"`
}

// FOKOrderResponse reports the venue's fill outcome for one leg.
type FOKOrderResponse struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	FilledQty float64 `json:"filled_qty"`
}

// SubmitFOK places a single fill-or-kill limit order for one leg.
func (c *ExchangeClient) SubmitFOK(ctx context.Context, leg types.LegOrder) (*FOKOrderResponse, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would submit FOK order",
			"symbol", leg.ExchangeCode, "side", leg.Side, "price", leg.Price, "qty", leg.Qty)
		return &FOKOrderResponse{OrderID: "dry-run", Status: "filled", FilledQty: leg.Qty}, nil
	}
	if err := c.rl.Wait(ctx, exchange.CategoryOrder); err != nil {
		return nil, err
	}

	req := fokOrderRequest{
		Symbol:      leg.ExchangeCode,
		Side:        string(leg.Side),
		Price:       decimal.NewFromFloat(leg.Price).String(),
		Quantity:    decimal.NewFromFloat(leg.Qty).String(),
		Type:        "LIMIT",
		TimeInForce: "FOK",
	}

	headers, err := c.auth.Headers(http.MethodPost, "/orders", "")
	if err != nil {
		return nil, fmt.Errorf("ordering: build auth headers: %w", err)
	}

	var result FOKOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(req).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("ordering: submit fok: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("ordering: submit fok: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &result, nil
}

// FreeBalance fetches the currently free (unencumbered) balance of asset.
func (c *ExchangeClient) FreeBalance(ctx context.Context, asset string) (float64, error) {
	if c.dryRun {
		return 0, nil
	}
	if err := c.rl.Wait(ctx, exchange.CategoryCatalog); err != nil {
		return 0, err
	}

	headers, err := c.auth.Headers(http.MethodGet, "/balances", "")
	if err != nil {
		return 0, fmt.Errorf("ordering: build auth headers: %w", err)
	}

	var result struct {
		Free float64 `json:"free"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("asset", asset).
		SetResult(&result).
		Get("/balances")
	if err != nil {
		return 0, fmt.Errorf("ordering: free balance %s: %w", asset, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("ordering: free balance %s: status %d", asset, resp.StatusCode())
	}
	return result.Free, nil
}

// Sink consumes realized profits from the detector's output channel and
// submits the three legs as FOK orders when a profit is ordering-valid. It
// never blocks the detector: it owns its own goroutine, draining the
// channel at its own pace.
type Sink struct {
	client             *ExchangeClient
	catalog            ResidualCatalog
	startAsset         types.Asset
	reconcileResiduals bool
	sleepBetween       time.Duration
	logger             *slog.Logger
}

// ResidualCatalog is the narrow lookup the residual-balance sweep needs:
// the instrument (and its step size) for converting one non-start asset
// back toward the start asset.
type ResidualCatalog interface {
	Get(ctx context.Context, instrumentID string) (types.Instrument, error)
}

// NewSink constructs a Sink. reconcileResiduals enables the
// post-cycle residual-balance sweep described in spec.md §9's supplemented
// features.
func NewSink(client *ExchangeClient, catalog ResidualCatalog, startAsset types.Asset, reconcileResiduals bool, logger *slog.Logger) *Sink {
	return &Sink{
		client:             client,
		catalog:            catalog,
		startAsset:         startAsset,
		reconcileResiduals: reconcileResiduals,
		sleepBetween:       sleepBetweenTransactions(),
		logger:             logger.With("component", "ordering_sink"),
	}
}

// Run drains profits until ctx is cancelled or profits is closed.
func (s *Sink) Run(ctx context.Context, profits <-chan arbitrage.Profit) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-profits:
			if !ok {
				return
			}
			s.handle(ctx, p)
		}
	}
}

func (s *Sink) handle(ctx context.Context, p arbitrage.Profit) {
	if !p.IsValidOrdering() {
		s.logger.Info("profit not ordering-valid, skipping submission",
			"triangle", p.Name, "profit", p.Profit())
		return
	}

	for i, r := range p.Results {
		order := types.LegOrder{
			ExchangeCode: r.ExchangeCode,
			Side:         r.Side,
			Price:        r.Price,
			Qty:          r.QtyToExecute,
		}
		resp, err := s.client.SubmitFOK(ctx, order)
		if err != nil {
			s.logger.Error("fok submission failed", "triangle", p.Name, "leg", i, "error", err)
			return
		}
		s.logger.Info("fok order submitted", "triangle", p.Name, "leg", i, "order_id", resp.OrderID, "status", resp.Status)

		if i < len(p.Results)-1 {
			time.Sleep(s.sleepBetween)
		}
	}

	if s.reconcileResiduals {
		s.ReconcileResidual(ctx, p)
	}
}

// ReconcileResidual sweeps any free balance left in a non-start asset back
// toward the start asset after a completed cycle. This is a bounded,
// best-effort cleanup that runs after the FOK legs, outside the detector's
// hot path — failures are logged and never fatal.
func (s *Sink) ReconcileResidual(ctx context.Context, p arbitrage.Profit) {
	for _, asset := range p.AssetList() {
		if types.Asset(asset) == s.startAsset {
			continue
		}

		free, err := s.client.FreeBalance(ctx, asset)
		if err != nil {
			s.logger.Warn("reconcile: free balance lookup failed", "asset", asset, "error", err)
			continue
		}
		if free <= 0 {
			continue
		}

		instrumentID := fmt.Sprintf("%s_%s_%s", instrumentExchangeHint(p), asset, s.startAsset)
		inst, err := s.catalog.Get(ctx, instrumentID)
		if err != nil {
			s.logger.Warn("reconcile: instrument lookup failed", "instrument_id", instrumentID, "error", err)
			continue
		}

		qty := quant.RoundDownToGrid(free, inst.StepSize)
		if qty <= 0 {
			continue
		}

		order := types.LegOrder{
			ExchangeCode: asset + string(s.startAsset),
			Side:         types.SELL,
			Price:        0, // market sell: price is venue-determined
			Qty:          qty,
		}
		if _, err := s.client.SubmitFOK(ctx, order); err != nil {
			s.logger.Warn("reconcile: sweep order failed", "asset", asset, "error", err)
			continue
		}
		s.logger.Info("reconcile: swept residual balance", "asset", asset, "qty", qty)
	}
}

// instrumentExchangeHint recovers the exchange prefix from the triangle's
// first leg instrument id (grammar: {EXCHANGE}_{BASE}_{QUOTE}).
func instrumentExchangeHint(p arbitrage.Profit) string {
	id := p.Results[0].InstrumentID
	for i := 0; i < len(id); i++ {
		if id[i] == '_' {
			return id[:i]
		}
	}
	return id
}
