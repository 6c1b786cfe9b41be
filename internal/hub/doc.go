// Package hub implements the Stream Hub, the public entry point of the
// ingestion core.
//
// A Hub owns one connection.Manager per configured source. It routes every
// normalized tick through the sink Writer, publishes tick, sink and
// connectionExhausted events on its events.Bus, and reports per-source
// streaming status. Start returns as soon as every Manager has been told to
// connect; Stop returns once every transport is closed.
package hub
