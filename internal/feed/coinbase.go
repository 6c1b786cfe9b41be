package feed

import (
	"encoding/json"

	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/normalize"
)

const (
	DefaultCoinbaseURL   = "wss://ws-feed.exchange.coinbase.com"
	DefaultCoinbaseQuote = "USD"
)

// Coinbase subscribes to the "ticker" channel for each product.
type Coinbase struct {
	url   string
	quote string
}

type coinbaseSubscribe struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type coinbaseEnvelope struct {
	Type string `json:"type"`
}

// NewCoinbase creates the Coinbase adapter.
func NewCoinbase(cfg Config) *Coinbase {
	c := &Coinbase{url: cfg.URL, quote: cfg.Quote}
	if c.url == "" {
		c.url = DefaultCoinbaseURL
	}
	if c.quote == "" {
		c.quote = DefaultCoinbaseQuote
	}
	return c
}

// Name implements Adapter.
func (c *Coinbase) Name() model.Source { return model.SourceCoinbase }

// Endpoint implements Adapter.
func (c *Coinbase) Endpoint(model.SubscriptionSet) string { return c.url }

// Instrument returns the product id for a canonical symbol ("BTC" -> "BTC-USD").
func (c *Coinbase) Instrument(symbol string) string {
	return symbol + "-" + c.quote
}

// BuildSubscription implements Adapter.
func (c *Coinbase) BuildSubscription(symbols model.SubscriptionSet) ([]byte, error) {
	products := make([]string, 0, symbols.Len())
	for _, sym := range symbols.Symbols() {
		products = append(products, c.Instrument(sym))
	}
	return json.Marshal(coinbaseSubscribe{
		Type:       "subscribe",
		ProductIDs: products,
		Channels:   []string{"ticker"},
	})
}

// IsTickerFrame implements Adapter.
func (c *Coinbase) IsTickerFrame(raw []byte) bool {
	var env coinbaseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return true
	}
	return env.Type == "ticker"
}

// ParseFrame implements Adapter.
func (c *Coinbase) ParseFrame(raw []byte) (normalize.RawTick, error) {
	var t normalize.CoinbaseTicker
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, &ParseError{Source: model.SourceCoinbase, Err: err}
	}
	if t.Type != "ticker" {
		return nil, &ParseError{Source: model.SourceCoinbase, Err: ErrNotTicker}
	}
	return t, nil
}
