package backfill

// DefaultInterval is used for timeframes the API does not know.
const DefaultInterval = "1d"

var intervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
	"1w":  "1w",
	"1M":  "1M",
}

// Interval maps a timeframe label onto the kline interval parameter.
// Unknown labels fall back to DefaultInterval.
func Interval(timeframe string) string {
	if iv, ok := intervals[timeframe]; ok {
		return iv
	}
	return DefaultInterval
}
