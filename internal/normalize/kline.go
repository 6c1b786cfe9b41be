package normalize

import (
	"fmt"
	"time"

	"github.com/rickgao/market-ingest/internal/model"
)

// NormalizeKline maps one Binance REST kline row
// [openTime, open, high, low, close, volume, closeTime, ...] onto a Candle.
// symbol may be an exchange instrument; it is reduced to the canonical form.
func NormalizeKline(symbol, timeframe string, row []any) (model.Candle, error) {
	src := model.SourceBinance

	canonical := CanonicalSymbol(symbol)
	if canonical == "" {
		return model.Candle{}, &NormalizationError{Source: src, Field: "symbol", Err: ErrMissingField}
	}
	if len(row) < 6 {
		return model.Candle{}, &NormalizationError{Source: src, Err: fmt.Errorf("kline row has %d fields, want >= 6", len(row))}
	}

	openMs, ok := row[0].(float64)
	if !ok || openMs <= 0 {
		return model.Candle{}, &NormalizationError{Source: src, Field: "open_time", Err: ErrMissingField}
	}

	str := func(i int) string {
		s, _ := row[i].(string)
		return s
	}

	closePrice, err := parsePrice(src, "close", str(4))
	if err != nil {
		return model.Candle{}, err
	}

	return model.Candle{
		Symbol:    canonical,
		Timeframe: timeframe,
		OpenTime:  time.UnixMilli(int64(openMs)).UTC(),
		Open:      parseOptional(str(1)).InexactFloat64(),
		High:      parseOptional(str(2)).InexactFloat64(),
		Low:       parseOptional(str(3)).InexactFloat64(),
		Close:     closePrice.InexactFloat64(),
		Volume:    parseOptional(str(5)).InexactFloat64(),
		Source:    src,
	}, nil
}
