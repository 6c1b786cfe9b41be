// Package model defines shared data types used across the ingestion pipeline.
//
// Conventions:
//   - Symbols: canonical base asset, upper case ("BTC"), quote suffix stripped
//   - Prices and volumes: float64 in quote-currency units
//   - Change24h: fractional (0.025 = +2.5%)
//   - Timestamps: time.Time in UTC
//   - Record IDs: uuid.UUID
package model
