// Package persistence supplements a feature the distilled spec drops but
// the Rust original (arbitrage_database.rs) has: persisting realized
// profits to Postgres for later analysis. The detector never calls this
// package directly — only cmd/detector's wiring does, via a buffered
// channel drain goroutine — so a database outage cannot block detection.
package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"triarb-detector/internal/arbitrage"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS triangle_arbitrage (
	id              UUID PRIMARY KEY,
	triangle_name   TEXT NOT NULL,
	profit          DOUBLE PRECISION NOT NULL,
	distance        DOUBLE PRECISION NOT NULL,
	latency_ms      BIGINT NOT NULL,
	is_valid_order  BOOLEAN NOT NULL,
	tick_timestamp  DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
)`

const insertProfitSQL = `
INSERT INTO triangle_arbitrage
	(id, triangle_name, profit, distance, latency_ms, is_valid_order, tick_timestamp, created_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

// Store wraps a Postgres connection pool for profit persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to dsn and creates the triangle_arbitrage table if absent.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: create table: %w", err)
	}

	return &Store{pool: pool, logger: logger.With("component", "persistence")}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveProfit persists one realized profit. Callers should treat an error as
// non-fatal to the detection loop.
func (s *Store) SaveProfit(ctx context.Context, p arbitrage.Profit) error {
	_, err := s.pool.Exec(ctx, insertProfitSQL,
		p.UUID, p.Name, p.Profit(), p.Distance(), p.LatencyMs(),
		p.IsValidOrdering(), p.TickTimestamp, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("persistence: save profit: %w", err)
	}
	return nil
}

// Drain reads from profits until the channel is closed or ctx is cancelled,
// persisting every profit and logging (never panicking) on failure. It is
// meant to run in its own goroutine, decoupled from the detection hot path.
func (s *Store) Drain(ctx context.Context, profits <-chan arbitrage.Profit) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-profits:
			if !ok {
				return
			}
			if err := s.SaveProfit(ctx, p); err != nil {
				s.logger.Error("failed to persist profit", "triangle", p.Name, "error", err)
			}
		}
	}
}
