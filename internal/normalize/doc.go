// Package normalize maps source-specific raw ticker payloads onto model.Tick.
//
// Every function here is pure: no I/O, no clocks (the receive time is passed
// in), no shared state. Optional numeric fields that are missing or cannot be
// parsed become 0; only the symbol and the price are mandatory.
package normalize
