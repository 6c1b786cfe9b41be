package feed

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/normalize"
)

const (
	DefaultBinanceURL   = "wss://stream.binance.com:9443/ws"
	DefaultBinanceQuote = "USDT"

	binanceTickerEvent = "24hrTicker"
)

// Binance streams <symbol>@ticker events.
type Binance struct {
	url   string
	quote string
}

// binanceSubscribe is the SUBSCRIBE method request.
type binanceSubscribe struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// binanceEnvelope covers both raw (/ws) and combined (/stream) payloads.
type binanceEnvelope struct {
	Event  string          `json:"e"`
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// NewBinance creates the Binance adapter.
func NewBinance(cfg Config) *Binance {
	b := &Binance{url: cfg.URL, quote: cfg.Quote}
	if b.url == "" {
		b.url = DefaultBinanceURL
	}
	if b.quote == "" {
		b.quote = DefaultBinanceQuote
	}
	return b
}

// Name implements Adapter.
func (b *Binance) Name() model.Source { return model.SourceBinance }

// Endpoint implements Adapter.
func (b *Binance) Endpoint(model.SubscriptionSet) string { return b.url }

// Instrument returns the stream instrument for a canonical symbol ("BTC" -> "btcusdt").
func (b *Binance) Instrument(symbol string) string {
	return strings.ToLower(symbol + b.quote)
}

// BuildSubscription implements Adapter.
func (b *Binance) BuildSubscription(symbols model.SubscriptionSet) ([]byte, error) {
	params := make([]string, 0, symbols.Len())
	for _, sym := range symbols.Symbols() {
		params = append(params, b.Instrument(sym)+"@ticker")
	}
	return json.Marshal(binanceSubscribe{
		Method: "SUBSCRIBE",
		Params: params,
		ID:     1,
	})
}

// IsTickerFrame implements Adapter.
func (b *Binance) IsTickerFrame(raw []byte) bool {
	if !json.Valid(raw) {
		return true
	}
	// Quick check before a full decode
	if !bytes.Contains(raw, []byte(binanceTickerEvent)) {
		return false
	}
	payload, err := b.unwrap(raw)
	if err != nil {
		return true
	}
	var env binanceEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return false
	}
	return env.Event == binanceTickerEvent
}

// ParseFrame implements Adapter.
func (b *Binance) ParseFrame(raw []byte) (normalize.RawTick, error) {
	payload, err := b.unwrap(raw)
	if err != nil {
		return nil, &ParseError{Source: model.SourceBinance, Err: err}
	}
	var t normalize.BinanceTicker
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, &ParseError{Source: model.SourceBinance, Err: err}
	}
	if t.EventType != binanceTickerEvent {
		return nil, &ParseError{Source: model.SourceBinance, Err: ErrNotTicker}
	}
	return t, nil
}

// unwrap strips the combined-stream envelope when present.
func (b *Binance) unwrap(raw []byte) ([]byte, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Stream != "" && len(env.Data) > 0 {
		return env.Data, nil
	}
	return raw, nil
}
