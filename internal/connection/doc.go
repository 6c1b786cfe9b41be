// Package connection implements the per-source Connection Manager.
//
// A Manager keeps exactly one logical connection to one source alive:
//   - Dials the source's streaming endpoint and sends its subscription
//   - Walks Disconnected → Connecting → Subscribed → Streaming
//   - Hands ticker frames to the source's feed.Adapter and the Normalizer
//   - Reconnects with capped exponential backoff on unexpected close
//   - Reports a terminal ExhaustedError when max attempts is exceeded
package connection
