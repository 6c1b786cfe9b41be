// Package sink delivers normalized ticks to the cache and the durable store.
//
// The two writes are independent: they run concurrently, neither waits on
// nor rolls back the other, and each outcome is published as its own
// sinkPersisted or sinkError event. Nothing is retried synchronously; the
// next tick for the symbol overwrites a stale cache entry.
package sink
