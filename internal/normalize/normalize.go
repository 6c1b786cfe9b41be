package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/market-ingest/internal/model"
)

var hundred = decimal.NewFromInt(100)

// quoteSuffixes are stripped from concatenated exchange symbols ("BTCUSDT").
// Longer suffixes come first so "TUSD" wins over "USD".
var quoteSuffixes = []string{
	"FDUSD",
	"USDT", "BUSD", "USDC", "TUSD",
	"DAI", "USD", "EUR", "GBP",
}

// Normalize maps a raw ticker onto the canonical Tick. receivedAt is used as
// the timestamp when the payload carries no event time.
func Normalize(raw RawTick, receivedAt time.Time) (model.Tick, error) {
	switch r := raw.(type) {
	case BinanceTicker:
		return normalizeBinance(r, receivedAt)
	case *BinanceTicker:
		if r == nil {
			return model.Tick{}, &NormalizationError{Source: model.SourceBinance, Err: ErrUnsupportedInput}
		}
		return normalizeBinance(*r, receivedAt)
	case CoinbaseTicker:
		return normalizeCoinbase(r, receivedAt)
	case *CoinbaseTicker:
		if r == nil {
			return model.Tick{}, &NormalizationError{Source: model.SourceCoinbase, Err: ErrUnsupportedInput}
		}
		return normalizeCoinbase(*r, receivedAt)
	case nil:
		return model.Tick{}, &NormalizationError{Err: ErrUnsupportedInput}
	default:
		return model.Tick{}, &NormalizationError{Source: raw.Source(), Err: fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)}
	}
}

func normalizeBinance(r BinanceTicker, receivedAt time.Time) (model.Tick, error) {
	src := model.SourceBinance

	symbol := CanonicalSymbol(r.Symbol)
	if symbol == "" {
		return model.Tick{}, &NormalizationError{Source: src, Field: "s", Err: ErrMissingField}
	}
	price, err := parsePrice(src, "c", r.LastPrice)
	if err != nil {
		return model.Tick{}, err
	}

	// Prefer the exchange's own percentage; derive from open otherwise.
	var change decimal.Decimal
	if pct, ok := parseDecimal(r.ChangePercent); ok {
		change = pct.Div(hundred)
	} else {
		change = fractionalChange(price, parseOptional(r.Open))
	}

	ts := receivedAt
	if r.EventTime > 0 {
		ts = time.UnixMilli(r.EventTime)
	}

	return model.Tick{
		Symbol:    symbol,
		Price:     price.InexactFloat64(),
		Volume:    parseOptional(r.Volume).InexactFloat64(),
		High24h:   parseOptional(r.High).InexactFloat64(),
		Low24h:    parseOptional(r.Low).InexactFloat64(),
		Change24h: change.InexactFloat64(),
		Timestamp: ts.UTC(),
		Source:    src,
	}, nil
}

func normalizeCoinbase(r CoinbaseTicker, receivedAt time.Time) (model.Tick, error) {
	src := model.SourceCoinbase

	symbol := CanonicalSymbol(r.ProductID)
	if symbol == "" {
		return model.Tick{}, &NormalizationError{Source: src, Field: "product_id", Err: ErrMissingField}
	}
	price, err := parsePrice(src, "price", r.Price)
	if err != nil {
		return model.Tick{}, err
	}

	ts := receivedAt
	if r.Time != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, r.Time); err == nil {
			ts = parsed
		}
	}

	return model.Tick{
		Symbol:    symbol,
		Price:     price.InexactFloat64(),
		Volume:    parseOptional(r.Volume24h).InexactFloat64(),
		High24h:   parseOptional(r.High24h).InexactFloat64(),
		Low24h:    parseOptional(r.Low24h).InexactFloat64(),
		Change24h: fractionalChange(price, parseOptional(r.Open24h)).InexactFloat64(),
		Timestamp: ts.UTC(),
		Source:    src,
	}, nil
}

// CanonicalSymbol reduces an exchange instrument name to its base asset:
// "BTCUSDT" -> "BTC", "BTC-USD" -> "BTC", "eth/eur" -> "ETH".
func CanonicalSymbol(instrument string) string {
	s := strings.ToUpper(strings.TrimSpace(instrument))
	if s == "" {
		return ""
	}
	if i := strings.IndexAny(s, "-/_"); i >= 0 {
		return s[:i]
	}
	for _, q := range quoteSuffixes {
		if len(s) > len(q) && strings.HasSuffix(s, q) {
			return strings.TrimSuffix(s, q)
		}
	}
	return s
}

// fractionalChange returns (current-open)/open, or 0 when open is 0 or absent.
func fractionalChange(current, open decimal.Decimal) decimal.Decimal {
	if open.IsZero() {
		return decimal.Zero
	}
	return current.Sub(open).Div(open)
}

func parsePrice(src model.Source, field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, &NormalizationError{Source: src, Field: field, Err: ErrMissingField}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &NormalizationError{Source: src, Field: field, Err: err}
	}
	if d.IsNegative() {
		return decimal.Zero, &NormalizationError{Source: src, Field: field, Err: ErrNegativePrice}
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseOptional(s string) decimal.Decimal {
	d, _ := parseDecimal(s)
	return d
}
