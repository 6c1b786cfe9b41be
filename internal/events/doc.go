// Package events is the hub's publish/subscribe surface.
//
// Delivery is best-effort: Publish never blocks. Each Subscription has its
// own buffered channel; when it is full the event is dropped for that
// subscriber only and counted in Subscription.Dropped and the
// ingest_events_dropped_total metric.
package events
