package feed

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/normalize"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    model.Source
		wantErr bool
	}{
		{"binance", model.SourceBinance, false},
		{" Coinbase ", model.SourceCoinbase, false},
		{"kraken", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.name, Config{})
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownSource) {
					t.Errorf("New(%q) error = %v, want ErrUnknownSource", tt.name, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.name, err)
			}
			if a.Name() != tt.want {
				t.Errorf("Name() = %v, want %v", a.Name(), tt.want)
			}
		})
	}
}

func TestBinance_BuildSubscription(t *testing.T) {
	b := NewBinance(Config{})
	msg, err := b.BuildSubscription(model.NewSubscriptionSet("BTC", "eth"))
	if err != nil {
		t.Fatalf("BuildSubscription() error = %v", err)
	}

	var got binanceSubscribe
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Method != "SUBSCRIBE" {
		t.Errorf("Method = %q, want SUBSCRIBE", got.Method)
	}
	want := []string{"btcusdt@ticker", "ethusdt@ticker"}
	if !reflect.DeepEqual(got.Params, want) {
		t.Errorf("Params = %v, want %v", got.Params, want)
	}
}

func TestBinance_CustomQuote(t *testing.T) {
	b := NewBinance(Config{Quote: "FDUSD", URL: "ws://localhost:1/ws"})
	if got := b.Instrument("SOL"); got != "solfdusd" {
		t.Errorf("Instrument() = %q, want solfdusd", got)
	}
	if got := b.Endpoint(model.NewSubscriptionSet("SOL")); got != "ws://localhost:1/ws" {
		t.Errorf("Endpoint() = %q", got)
	}
}

func TestBinance_IsTickerFrame(t *testing.T) {
	b := NewBinance(Config{})
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"ticker", `{"e":"24hrTicker","s":"BTCUSDT","c":"1"}`, true},
		{"combined stream", `{"stream":"btcusdt@ticker","data":{"e":"24hrTicker","s":"BTCUSDT"}}`, true},
		{"subscribe ack", `{"result":null,"id":1}`, false},
		{"trade", `{"e":"trade","s":"BTCUSDT"}`, false},
		{"truncated ticker", `{"e":"24hrTicker",`, true},
		{"not json", `not json at all`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.IsTickerFrame([]byte(tt.raw)); got != tt.want {
				t.Errorf("IsTickerFrame(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBinance_ParseFrame(t *testing.T) {
	b := NewBinance(Config{})
	raw := `{"e":"24hrTicker","E":1705320000000,"s":"BTCUSDT","c":"50000.5","v":"100","h":"51000","l":"49000","o":"48800","P":"2.5"}`

	got, err := b.ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	ticker, ok := got.(normalize.BinanceTicker)
	if !ok {
		t.Fatalf("ParseFrame() type = %T, want normalize.BinanceTicker", got)
	}
	if ticker.Symbol != "BTCUSDT" || ticker.LastPrice != "50000.5" || ticker.ChangePercent != "2.5" {
		t.Errorf("ParseFrame() = %+v", ticker)
	}
	if ticker.EventTime != 1705320000000 {
		t.Errorf("EventTime = %d, want 1705320000000", ticker.EventTime)
	}
}

func TestBinance_ParseFrameErrors(t *testing.T) {
	b := NewBinance(Config{})
	for _, raw := range []string{`not json`, `{"e":"trade"}`, `{"e":"24hrTicker","c":5}`} {
		_, err := b.ParseFrame([]byte(raw))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseFrame(%s) error = %v, want *ParseError", raw, err)
			continue
		}
		if pe.Source != model.SourceBinance {
			t.Errorf("ParseError.Source = %v, want binance", pe.Source)
		}
	}
}

func TestCoinbase_BuildSubscription(t *testing.T) {
	c := NewCoinbase(Config{})
	msg, err := c.BuildSubscription(model.NewSubscriptionSet("BTC", "ETH"))
	if err != nil {
		t.Fatalf("BuildSubscription() error = %v", err)
	}

	var got coinbaseSubscribe
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "subscribe" {
		t.Errorf("Type = %q, want subscribe", got.Type)
	}
	if want := []string{"BTC-USD", "ETH-USD"}; !reflect.DeepEqual(got.ProductIDs, want) {
		t.Errorf("ProductIDs = %v, want %v", got.ProductIDs, want)
	}
	if want := []string{"ticker"}; !reflect.DeepEqual(got.Channels, want) {
		t.Errorf("Channels = %v, want %v", got.Channels, want)
	}
}

func TestCoinbase_Frames(t *testing.T) {
	c := NewCoinbase(Config{})
	tests := []struct {
		name       string
		raw        string
		wantTicker bool
		wantErr    bool
	}{
		{"ticker", `{"type":"ticker","product_id":"BTC-USD","price":"50000","open_24h":"49000","time":"2024-01-15T12:00:00Z"}`, true, false},
		{"subscriptions ack", `{"type":"subscriptions","channels":[]}`, false, true},
		{"heartbeat", `{"type":"heartbeat","product_id":"BTC-USD"}`, false, true},
		{"truncated", `{"type":`, true, true},
		{"not json", `not json at all`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsTickerFrame([]byte(tt.raw)); got != tt.wantTicker {
				t.Errorf("IsTickerFrame() = %v, want %v", got, tt.wantTicker)
			}
			raw, err := c.ParseFrame([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Errorf("ParseFrame() error = %T, want *ParseError", err)
				}
				return
			}
			ticker := raw.(normalize.CoinbaseTicker)
			if ticker.ProductID != "BTC-USD" || ticker.Price != "50000" {
				t.Errorf("ParseFrame() = %+v", ticker)
			}
		})
	}
}

func TestAdapters_FeedNormalizer(t *testing.T) {
	frames := map[string]string{
		"binance":  `{"e":"24hrTicker","s":"ETHUSDT","c":"3000","P":"-1.5"}`,
		"coinbase": `{"type":"ticker","product_id":"ETH-USD","price":"3000","open_24h":"3100"}`,
	}
	for name, frame := range frames {
		a, err := New(name, Config{})
		if err != nil {
			t.Fatalf("New(%q) error = %v", name, err)
		}
		raw, err := a.ParseFrame([]byte(frame))
		if err != nil {
			t.Fatalf("%s ParseFrame() error = %v", name, err)
		}
		if raw.Source() != a.Name() {
			t.Errorf("%s raw.Source() = %v, want %v", name, raw.Source(), a.Name())
		}
		tick, err := normalize.Normalize(raw, receivedAt())
		if err != nil {
			t.Fatalf("%s Normalize() error = %v", name, err)
		}
		if tick.Symbol != "ETH" || tick.Price != 3000 || tick.Change24h >= 0 {
			t.Errorf("%s tick = %+v", name, tick)
		}
	}
}

func receivedAt() time.Time {
	return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
}
