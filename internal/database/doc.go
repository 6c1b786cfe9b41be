// Package database provides connection pool management for PostgreSQL/TimescaleDB.
//
// The ingestor keeps one pool holding:
//   - market_ticks: every normalized tick (hypertable when TimescaleDB is installed)
//   - price_history: backfilled OHLCV candles
//   - system_events: operational events such as exhausted connections
package database
