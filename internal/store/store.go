// Package store is the durable tick history.
//
// Two implementations share the same semantics:
//   - Postgres: pgx pool against PostgreSQL or TimescaleDB
//   - Memory: process-local, used by cmd/streamtest and tests
//
// Ticks are keyed by (symbol, source, timestamp); inserting the same tick
// twice updates the existing row instead of adding a second one. Candles
// are keyed by (symbol, timeframe, open_time).
package store

import (
	"context"

	"github.com/rickgao/market-ingest/internal/model"
)

// Store is implemented by Postgres and Memory.
type Store interface {
	// InsertTick upserts tick and returns the stored record.
	InsertTick(ctx context.Context, tick model.Tick) (model.TickRecord, error)

	// LatestTick returns the tick with the greatest timestamp for symbol
	// across all sources.
	LatestTick(ctx context.Context, symbol string) (model.TickRecord, bool, error)

	// InsertCandles upserts candles and returns how many were written.
	InsertCandles(ctx context.Context, candles []model.Candle) (int, error)

	// Candles returns up to limit candles, newest first. A limit <= 0
	// returns every candle.
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)

	// LogSystemEvent appends an operational event.
	LogSystemEvent(ctx context.Context, ev model.SystemEvent) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
