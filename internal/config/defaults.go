package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 90 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultConnBufferSize     = 1000
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisPoolSize      = 20
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultCacheTTL           = 60 * time.Second
	DefaultSinkWriteTimeout   = 5 * time.Second
	DefaultEventBufferSize    = 256
	DefaultBackfillRestURL    = "https://api.binance.com/api/v3"
	DefaultBackfillInterval   = 1 * time.Hour
	DefaultBackfillLimit      = 100
	DefaultBackfillWorkers    = 2
	DefaultBackfillRateLimit  = 1200
	DefaultBackfillRateWindow = 1 * time.Minute
	DefaultBackfillSpacing    = 100 * time.Millisecond
	DefaultBackfillTimeout    = 30 * time.Second
	DefaultBackfillRetries    = 3
	DefaultBackfillCacheTTL   = 1 * time.Hour
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// DefaultSymbols is the subscription set used when none is configured.
var DefaultSymbols = []string{"BTC", "ETH", "ADA", "DOT", "LINK"}

// DefaultTimeframes are the backfill timeframes used when none are configured.
var DefaultTimeframes = []string{"1h", "4h", "1d"}

func (c *IngestorConfig) applyDefaults() {
	if len(c.Symbols) == 0 {
		c.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if len(c.Sources) == 0 {
		c.Sources = []SourceConfig{{Name: "binance"}, {Name: "coinbase"}}
	}

	// Connections defaults
	if c.Connections.ReconnectBaseDelay == 0 {
		c.Connections.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connections.ReconnectMaxDelay == 0 {
		c.Connections.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connections.PingInterval == 0 {
		c.Connections.PingInterval = DefaultPingInterval
	}
	if c.Connections.PingTimeout == 0 {
		c.Connections.PingTimeout = DefaultPingTimeout
	}
	if c.Connections.WriteTimeout == 0 {
		c.Connections.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connections.BufferSize == 0 {
		c.Connections.BufferSize = DefaultConnBufferSize
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = DefaultRedisPoolSize
	}

	// Database defaults
	applyDBDefaults(&c.Database)

	// Sink defaults
	if c.Sink.CacheTTL == 0 {
		c.Sink.CacheTTL = DefaultCacheTTL
	}
	if c.Sink.WriteTimeout == 0 {
		c.Sink.WriteTimeout = DefaultSinkWriteTimeout
	}

	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = DefaultEventBufferSize
	}

	// Backfill defaults
	if c.Backfill.RestURL == "" {
		c.Backfill.RestURL = DefaultBackfillRestURL
	}
	if c.Backfill.Interval == 0 {
		c.Backfill.Interval = DefaultBackfillInterval
	}
	if len(c.Backfill.Timeframes) == 0 {
		c.Backfill.Timeframes = append([]string(nil), DefaultTimeframes...)
	}
	if c.Backfill.Limit == 0 {
		c.Backfill.Limit = DefaultBackfillLimit
	}
	if c.Backfill.Concurrency == 0 {
		c.Backfill.Concurrency = DefaultBackfillWorkers
	}
	if c.Backfill.RateLimit == 0 {
		c.Backfill.RateLimit = DefaultBackfillRateLimit
	}
	if c.Backfill.RateWindow == 0 {
		c.Backfill.RateWindow = DefaultBackfillRateWindow
	}
	if c.Backfill.Spacing == 0 {
		c.Backfill.Spacing = DefaultBackfillSpacing
	}
	if c.Backfill.Timeout == 0 {
		c.Backfill.Timeout = DefaultBackfillTimeout
	}
	if c.Backfill.MaxRetries == 0 {
		c.Backfill.MaxRetries = DefaultBackfillRetries
	}
	if c.Backfill.CacheTTL == 0 {
		c.Backfill.CacheTTL = DefaultBackfillCacheTTL
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
