// Package feed implements the per-source capability set used by the
// Connection Manager.
//
// Each source provides:
//   - Endpoint: the streaming URL to dial
//   - BuildSubscription: the subscribe message sent after connecting
//   - IsTickerFrame: cheap classification of inbound frames
//   - ParseFrame: structural decode into a normalize.RawTick
//
// Adding a source means adding one Adapter here and one raw shape in
// package normalize; the connection state machine is untouched.
package feed
