// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Ticks ingested and frames discarded per source
//   - Reconnect attempts and streaming state per source
//   - Cache and store write outcomes
//   - Events dropped on slow subscribers
//   - Candles collected by the backfill job
package metrics
