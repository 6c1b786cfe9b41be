package store

import (
	"context"
	"fmt"
)

// schema creates the tables used by Postgres. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS market_ticks (
		id          UUID             NOT NULL,
		symbol      TEXT             NOT NULL,
		source      TEXT             NOT NULL,
		ts          TIMESTAMPTZ      NOT NULL,
		price       DOUBLE PRECISION NOT NULL,
		volume      DOUBLE PRECISION NOT NULL DEFAULT 0,
		high_24h    DOUBLE PRECISION NOT NULL DEFAULT 0,
		low_24h     DOUBLE PRECISION NOT NULL DEFAULT 0,
		change_24h  DOUBLE PRECISION NOT NULL DEFAULT 0,
		inserted_at TIMESTAMPTZ      NOT NULL DEFAULT now(),
		PRIMARY KEY (symbol, source, ts)
	)`,
	`CREATE INDEX IF NOT EXISTS market_ticks_symbol_ts_idx ON market_ticks (symbol, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		symbol    TEXT             NOT NULL,
		timeframe TEXT             NOT NULL,
		open_time TIMESTAMPTZ      NOT NULL,
		open      DOUBLE PRECISION NOT NULL,
		high      DOUBLE PRECISION NOT NULL,
		low       DOUBLE PRECISION NOT NULL,
		close     DOUBLE PRECISION NOT NULL,
		volume    DOUBLE PRECISION NOT NULL,
		source    TEXT             NOT NULL,
		PRIMARY KEY (symbol, timeframe, open_time)
	)`,
	`CREATE TABLE IF NOT EXISTS system_events (
		id         UUID        PRIMARY KEY,
		level      TEXT        NOT NULL,
		component  TEXT        NOT NULL,
		message    TEXT        NOT NULL,
		data       JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates missing tables. On TimescaleDB market_ticks is
// converted to a hypertable on ts.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	var timescale bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb')`,
	).Scan(&timescale)
	if err != nil {
		return fmt.Errorf("detect timescaledb: %w", err)
	}
	if timescale {
		_, err := p.pool.Exec(ctx,
			`SELECT create_hypertable('market_ticks', 'ts', if_not_exists => TRUE, migrate_data => TRUE)`)
		if err != nil {
			return fmt.Errorf("create hypertable: %w", err)
		}
		p.logger.Info("market_ticks is a timescaledb hypertable")
	}
	return nil
}
