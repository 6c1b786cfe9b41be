package config

import "time"

// IngestorConfig is the root configuration for an ingestor instance.
type IngestorConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Symbols     []string          `yaml:"symbols"`
	Sources     []SourceConfig    `yaml:"sources"`
	Connections ConnectionsConfig `yaml:"connections"`
	Redis       RedisConfig       `yaml:"redis"`
	Database    DBConfig          `yaml:"database"`
	Sink        SinkConfig        `yaml:"sink"`
	Events      EventsConfig      `yaml:"events"`
	Backfill    BackfillConfig    `yaml:"backfill"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
}

// InstanceConfig identifies this ingestor.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig selects and configures one price feed.
type SourceConfig struct {
	Name        string `yaml:"name"`         // "binance", "coinbase"
	URL         string `yaml:"url"`          // Empty = source default
	Quote       string `yaml:"quote"`        // Empty = source default
	Enabled     *bool  `yaml:"enabled"`      // Nil = enabled
	MaxAttempts *int   `yaml:"max_attempts"` // Nil = connections.max_attempts
}

// IsEnabled reports whether the source should be started.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// EffectiveMaxAttempts returns the per-source override or fallback.
func (s SourceConfig) EffectiveMaxAttempts(fallback int) int {
	if s.MaxAttempts != nil {
		return *s.MaxAttempts
	}
	return fallback
}

// ConnectionsConfig holds Connection Manager settings shared by all sources.
type ConnectionsConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxAttempts        int           `yaml:"max_attempts"` // 0 = retry forever
	PingInterval       time.Duration `yaml:"ping_interval"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// RedisConfig holds the cache connection.
type RedisConfig struct {
	URL      string `yaml:"url"` // redis://... overrides the fields below
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	URL      string `yaml:"url"` // postgres://... overrides the fields below
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SinkConfig holds Sink Writer settings.
type SinkConfig struct {
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"` // Per-subscription buffer
}

// BackfillConfig holds historical kline collection settings.
type BackfillConfig struct {
	Enabled     bool          `yaml:"enabled"`
	RestURL     string        `yaml:"rest_url"`
	Interval    time.Duration `yaml:"interval"`
	Timeframes  []string      `yaml:"timeframes"`
	Limit       int           `yaml:"limit"`
	Concurrency int           `yaml:"concurrency"`
	RateLimit   int           `yaml:"rate_limit"`  // Requests per rate_window
	RateWindow  time.Duration `yaml:"rate_window"`
	Spacing     time.Duration `yaml:"spacing"`     // Pause between requests per worker
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}
