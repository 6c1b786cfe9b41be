package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/market-ingest/internal/model"
)

// Postgres stores ticks, candles and system events in PostgreSQL.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres wraps an open pool. The caller owns the pool.
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// InsertTick implements Store.
func (p *Postgres) InsertTick(ctx context.Context, tick model.Tick) (model.TickRecord, error) {
	rec := model.TickRecord{Tick: tick}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO market_ticks (id, symbol, source, ts, price, volume, high_24h, low_24h, change_24h)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, source, ts) DO UPDATE SET
			price      = EXCLUDED.price,
			volume     = EXCLUDED.volume,
			high_24h   = EXCLUDED.high_24h,
			low_24h    = EXCLUDED.low_24h,
			change_24h = EXCLUDED.change_24h
		RETURNING id, inserted_at
	`, uuid.New(), tick.Symbol, string(tick.Source), tick.Timestamp, tick.Price, tick.Volume,
		tick.High24h, tick.Low24h, tick.Change24h,
	).Scan(&rec.ID, &rec.InsertedAt)
	if err != nil {
		return model.TickRecord{}, fmt.Errorf("insert tick: %w", err)
	}
	return rec, nil
}

// LatestTick implements Store.
func (p *Postgres) LatestTick(ctx context.Context, symbol string) (model.TickRecord, bool, error) {
	var (
		rec    model.TickRecord
		source string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id, symbol, source, ts, price, volume, high_24h, low_24h, change_24h, inserted_at
		FROM market_ticks
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT 1
	`, symbol).Scan(
		&rec.ID, &rec.Tick.Symbol, &source, &rec.Tick.Timestamp, &rec.Tick.Price, &rec.Tick.Volume,
		&rec.Tick.High24h, &rec.Tick.Low24h, &rec.Tick.Change24h, &rec.InsertedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TickRecord{}, false, nil
	}
	if err != nil {
		return model.TickRecord{}, false, fmt.Errorf("latest tick: %w", err)
	}
	rec.Tick.Source = model.Source(source)
	return rec, true, nil
}

// InsertCandles implements Store using pgx.Batch.
func (p *Postgres) InsertCandles(ctx context.Context, candles []model.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(`
			INSERT INTO price_history (symbol, timeframe, open_time, open, high, low, close, volume, source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (symbol, timeframe, open_time) DO UPDATE SET
				open   = EXCLUDED.open,
				high   = EXCLUDED.high,
				low    = EXCLUDED.low,
				close  = EXCLUDED.close,
				volume = EXCLUDED.volume
		`, c.Symbol, c.Timeframe, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume, string(c.Source))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range candles {
		ct, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("insert candles: %w", err)
		}
		written += int(ct.RowsAffected())
	}
	return written, nil
}

// Candles implements Store.
func (p *Postgres) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	// LIMIT NULL means no limit
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := p.pool.Query(ctx, `
		SELECT symbol, timeframe, open_time, open, high, low, close, volume, source
		FROM price_history
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time DESC
		LIMIT $3
	`, symbol, timeframe, lim)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var (
			c      model.Candle
			source string
		)
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &source); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Source = model.Source(source)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LogSystemEvent implements Store.
func (p *Postgres) LogSystemEvent(ctx context.Context, ev model.SystemEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO system_events (id, level, component, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, ev.Level, ev.Component, ev.Message, ev.Data, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("log system event: %w", err)
	}
	return nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
