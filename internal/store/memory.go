package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/market-ingest/internal/model"
)

type tickKey struct {
	symbol string
	source model.Source
	ts     int64 // UnixNano
}

type candleKey struct {
	symbol    string
	timeframe string
	openTime  int64 // UnixNano
}

// Memory is an in-process Store with the same upsert semantics as Postgres.
type Memory struct {
	mu      sync.RWMutex
	ticks   map[tickKey]model.TickRecord
	candles map[candleKey]model.Candle
	events  []model.SystemEvent
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		ticks:   make(map[tickKey]model.TickRecord),
		candles: make(map[candleKey]model.Candle),
	}
}

// InsertTick implements Store.
func (m *Memory) InsertTick(ctx context.Context, tick model.Tick) (model.TickRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.TickRecord{}, err
	}
	key := tickKey{symbol: tick.Symbol, source: tick.Source, ts: tick.Timestamp.UnixNano()}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.ticks[key]
	if !ok {
		rec = model.TickRecord{ID: uuid.New(), InsertedAt: time.Now().UTC()}
	}
	rec.Tick = tick
	m.ticks[key] = rec
	return rec, nil
}

// LatestTick implements Store.
func (m *Memory) LatestTick(ctx context.Context, symbol string) (model.TickRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.TickRecord{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		latest model.TickRecord
		found  bool
	)
	for k, rec := range m.ticks {
		if k.symbol != symbol {
			continue
		}
		if !found || rec.Tick.Timestamp.After(latest.Tick.Timestamp) {
			latest, found = rec, true
		}
	}
	return latest, found, nil
}

// InsertCandles implements Store.
func (m *Memory) InsertCandles(ctx context.Context, candles []model.Candle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range candles {
		m.candles[candleKey{c.Symbol, c.Timeframe, c.OpenTime.UnixNano()}] = c
	}
	return len(candles), nil
}

// Candles implements Store.
func (m *Memory) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []model.Candle
	for k, c := range m.candles {
		if k.symbol == symbol && k.timeframe == timeframe {
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.After(out[j].OpenTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LogSystemEvent implements Store.
func (m *Memory) LogSystemEvent(ctx context.Context, ev model.SystemEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return nil
}

// SystemEvents returns a copy of the logged events, oldest first.
func (m *Memory) SystemEvents() []model.SystemEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.SystemEvent, len(m.events))
	copy(out, m.events)
	return out
}

// TickCount returns the number of distinct stored ticks.
func (m *Memory) TickCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ticks)
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
