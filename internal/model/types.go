package model

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies an external price-feed provider.
type Source string

const (
	SourceBinance  Source = "binance"
	SourceCoinbase Source = "coinbase"
)

// String returns the source name.
func (s Source) String() string { return string(s) }

// -----------------------------------------------------------------------------
// Streaming Types
// -----------------------------------------------------------------------------

// Tick is one normalized price/volume observation for a symbol.
// Ticks are passed by value; every consumer owns its copy.
type Tick struct {
	Symbol    string    `json:"symbol"`    // Canonical base asset (e.g., "BTC")
	Price     float64   `json:"price"`     // Last price, always >= 0
	Volume    float64   `json:"volume"`    // 24h base volume
	High24h   float64   `json:"high24h"`   // 24h high
	Low24h    float64   `json:"low24h"`    // 24h low
	Change24h float64   `json:"change24h"` // Fractional 24h change (0.025 = +2.5%)
	Timestamp time.Time `json:"timestamp"` // Source event time, or receive time if absent
	Source    Source    `json:"source"`    // Feed that produced the tick
}

// TickRecord is a Tick as persisted by the durable store.
type TickRecord struct {
	ID         uuid.UUID
	Tick       Tick
	InsertedAt time.Time
}

// CacheKey returns the cache key holding the latest tick for a symbol.
func CacheKey(symbol string) string {
	return "market:" + symbol
}

// -----------------------------------------------------------------------------
// Historical Types
// -----------------------------------------------------------------------------

// Candle is one OHLCV bar collected by the backfill job.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"` // "1m", "1h", "1d", ...
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Source    Source    `json:"source"`
}

// -----------------------------------------------------------------------------
// Operational Types
// -----------------------------------------------------------------------------

// SystemEvent is an operational event persisted for later inspection.
type SystemEvent struct {
	ID        uuid.UUID
	Level     string // "info", "warn", "error"
	Component string // e.g. "hub", "backfill"
	Message   string
	Data      map[string]any
	CreatedAt time.Time
}
