package feed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/normalize"
)

// Errors
var (
	ErrUnknownSource = errors.New("unknown source")
	ErrNotTicker     = errors.New("not a ticker frame")
)

// Adapter is the source-specific half of a streaming connection.
// Implementations are stateless and safe for concurrent use.
type Adapter interface {
	// Name identifies the source.
	Name() model.Source

	// Endpoint returns the URL to dial for the given symbols.
	Endpoint(symbols model.SubscriptionSet) string

	// BuildSubscription returns the message to send once connected.
	// A nil message means the endpoint itself carries the subscription.
	BuildSubscription(symbols model.SubscriptionSet) ([]byte, error)

	// IsTickerFrame reports whether raw carries ticker data (as opposed to
	// acks, heartbeats or subscription confirmations). It is false only for
	// well-formed frames that are not tickers; undecodable frames report
	// true so that ParseFrame surfaces them as *ParseError.
	IsTickerFrame(raw []byte) bool

	// ParseFrame decodes a ticker frame. Errors are *ParseError.
	ParseFrame(raw []byte) (normalize.RawTick, error)
}

// Config configures a source adapter.
type Config struct {
	URL   string // Streaming endpoint; empty uses the source default
	Quote string // Quote currency used to build instrument names; empty uses the source default
}

// New returns the adapter registered under name.
func New(name string, cfg Config) (Adapter, error) {
	switch model.Source(strings.ToLower(strings.TrimSpace(name))) {
	case model.SourceBinance:
		return NewBinance(cfg), nil
	case model.SourceCoinbase:
		return NewCoinbase(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
}

// Names lists the sources New understands.
func Names() []model.Source {
	return []model.Source{model.SourceBinance, model.SourceCoinbase}
}

// ParseError reports a frame that could not be decoded. The frame is
// discarded; the connection is unaffected.
type ParseError struct {
	Source model.Source
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s frame: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
