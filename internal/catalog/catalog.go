// Package catalog implements the two external lookup services the topology
// builder consults (spec.md §6): the authoritative reference-data catalog
// and the persisted instrument list. Both are read-only REST collaborators
// sitting outside the detection core; the detector only ever sees them
// through the narrow interfaces internal/topology declares.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"triarb-detector/internal/exchange"
	"triarb-detector/pkg/types"
)

// instrumentDTO is the wire shape of one instrument record as published by
// the reference-data service.
type instrumentDTO struct {
	ID       string  `json:"id"`
	Exchange string  `json:"exchange"`
	Base     string  `json:"base"`
	Quote    string  `json:"quote"`
	StepSize float64 `json:"step_size"`
	TickSize float64 `json:"tick_size"`
	MinQty   float64 `json:"min_qty"`
	MaxQty   float64 `json:"max_qty"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

func (d instrumentDTO) toInstrument() types.Instrument {
	return types.Instrument{
		ID:       d.ID,
		Exchange: d.Exchange,
		Base:     types.Asset(d.Base),
		Quote:    types.Asset(d.Quote),
		StepSize: d.StepSize,
		TickSize: d.TickSize,
		MinQty:   d.MinQty,
		MaxQty:   d.MaxQty,
		MinPrice: d.MinPrice,
		MaxPrice: d.MaxPrice,
	}
}

// ReferenceDataClient is a resty-backed client for the authoritative
// instrument catalog, following the teacher's retry/timeout conventions for
// REST collaborators.
type ReferenceDataClient struct {
	http *resty.Client
	rl   *exchange.TokenBucket
}

// NewReferenceDataClient builds a client against baseURL.
func NewReferenceDataClient(baseURL string) *ReferenceDataClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &ReferenceDataClient{
		http: httpClient,
		rl:   exchange.NewTokenBucket(150, 15),
	}
}

// Exists reports whether instrumentID is listed in the reference-data
// service.
func (c *ReferenceDataClient) Exists(ctx context.Context, instrumentID string) (bool, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return false, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", instrumentID).
		Get("/instruments/{id}")
	if err != nil {
		return false, fmt.Errorf("catalog: exists %s: %w", instrumentID, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("catalog: exists %s: status %d", instrumentID, resp.StatusCode())
	}
	return true, nil
}

// Get fetches the full instrument record, including the quantization grid.
func (c *ReferenceDataClient) Get(ctx context.Context, instrumentID string) (types.Instrument, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return types.Instrument{}, err
	}

	var dto instrumentDTO
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", instrumentID).
		SetResult(&dto).
		Get("/instruments/{id}")
	if err != nil {
		return types.Instrument{}, fmt.Errorf("catalog: get %s: %w", instrumentID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Instrument{}, fmt.Errorf("catalog: get %s: status %d", instrumentID, resp.StatusCode())
	}
	return dto.toInstrument(), nil
}

// InstrumentListClient is a resty-backed client for the persisted
// instrument-list service — the "second gate" in topology construction,
// independent of the reference-data service.
type InstrumentListClient struct {
	http *resty.Client
	rl   *exchange.TokenBucket
}

// NewInstrumentListClient builds a client against baseURL.
func NewInstrumentListClient(baseURL string) *InstrumentListClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &InstrumentListClient{
		http: httpClient,
		rl:   exchange.NewTokenBucket(150, 15),
	}
}

// List returns the full set of instrument IDs currently listed on the
// exchange.
func (c *InstrumentListClient) List(ctx context.Context) (map[string]struct{}, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var ids []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&ids).
		Get("/instruments")
	if err != nil {
		return nil, fmt.Errorf("catalog: list instruments: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("catalog: list instruments: status %d", resp.StatusCode())
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// StaticCatalog is a map-backed ReferenceData + InstrumentLister built from
// an in-memory slice of instruments, used in place of the live services
// (e.g. in tests). It does no file loading of its own.
type StaticCatalog struct {
	Instruments map[string]types.Instrument
}

// NewStaticCatalog builds a StaticCatalog from a slice of instruments.
func NewStaticCatalog(instruments []types.Instrument) *StaticCatalog {
	m := make(map[string]types.Instrument, len(instruments))
	for _, inst := range instruments {
		m[inst.ID] = inst
	}
	return &StaticCatalog{Instruments: m}
}

// Exists implements ReferenceData.
func (s *StaticCatalog) Exists(ctx context.Context, instrumentID string) (bool, error) {
	_, ok := s.Instruments[instrumentID]
	return ok, nil
}

// Get implements ReferenceData.
func (s *StaticCatalog) Get(ctx context.Context, instrumentID string) (types.Instrument, error) {
	inst, ok := s.Instruments[instrumentID]
	if !ok {
		return types.Instrument{}, fmt.Errorf("catalog: instrument %s not found", instrumentID)
	}
	return inst, nil
}

// List implements InstrumentLister: every instrument the StaticCatalog
// knows about is considered listed.
func (s *StaticCatalog) List(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(s.Instruments))
	for id := range s.Instruments {
		out[id] = struct{}{}
	}
	return out, nil
}
