package normalize

import "github.com/rickgao/market-ingest/internal/model"

// RawTick is a ticker payload in its source's wire shape.
type RawTick interface {
	Source() model.Source
}

// BinanceTicker is the 24hr rolling-window ticker event (<symbol>@ticker).
type BinanceTicker struct {
	EventType     string `json:"e"` // "24hrTicker"
	EventTime     int64  `json:"E"` // Milliseconds
	Symbol        string `json:"s"` // "BTCUSDT"
	LastPrice     string `json:"c"`
	Volume        string `json:"v"` // Base asset volume
	High          string `json:"h"`
	Low           string `json:"l"`
	Open          string `json:"o"`
	ChangePercent string `json:"P"` // "2.5" = +2.5%
}

// Source implements RawTick.
func (BinanceTicker) Source() model.Source { return model.SourceBinance }

// CoinbaseTicker is a message from the "ticker" channel.
type CoinbaseTicker struct {
	Type      string `json:"type"`       // "ticker"
	ProductID string `json:"product_id"` // "BTC-USD"
	Price     string `json:"price"`
	Volume24h string `json:"volume_24h"`
	High24h   string `json:"high_24h"`
	Low24h    string `json:"low_24h"`
	Open24h   string `json:"open_24h"`
	Time      string `json:"time"` // RFC3339
}

// Source implements RawTick.
func (CoinbaseTicker) Source() model.Source { return model.SourceCoinbase }
