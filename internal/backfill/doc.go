// Package backfill collects historical OHLCV candles over the Binance REST
// API and upserts them into the store.
//
// A Job runs one collection cycle at start and then on every interval. Each
// cycle fans out over symbol x timeframe with bounded concurrency, consults
// the cache before calling the API, and honours a shared rate limit.
package backfill
