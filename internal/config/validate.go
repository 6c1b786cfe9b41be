package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngestorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Symbols) == 0 {
		return errors.New("symbols must not be empty")
	}
	for i, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symbols[%d] is empty", i)
		}
	}

	enabled := 0
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, name)
		}
		seen[name] = true
		if s.MaxAttempts != nil && *s.MaxAttempts < 0 {
			return fmt.Errorf("sources[%d].max_attempts must be >= 0", i)
		}
		if s.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("at least one source must be enabled")
	}

	if c.Connections.ReconnectBaseDelay <= 0 {
		return errors.New("connections.reconnect_base_delay must be > 0")
	}
	if c.Connections.ReconnectMaxDelay < c.Connections.ReconnectBaseDelay {
		return fmt.Errorf("connections.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			c.Connections.ReconnectMaxDelay, c.Connections.ReconnectBaseDelay)
	}
	if c.Connections.MaxAttempts < 0 {
		return errors.New("connections.max_attempts must be >= 0")
	}
	if c.Connections.BufferSize < 1 {
		return errors.New("connections.buffer_size must be >= 1")
	}

	if c.Redis.URL == "" && c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Sink.CacheTTL <= 0 {
		return errors.New("sink.cache_ttl must be > 0")
	}
	if c.Events.BufferSize < 1 {
		return errors.New("events.buffer_size must be >= 1")
	}

	if c.Backfill.Enabled {
		if c.Backfill.Limit < 1 || c.Backfill.Limit > 1000 {
			return fmt.Errorf("backfill.limit must be between 1 and 1000, got %d", c.Backfill.Limit)
		}
		if c.Backfill.Concurrency < 1 {
			return errors.New("backfill.concurrency must be >= 1")
		}
		if c.Backfill.Interval <= 0 {
			return errors.New("backfill.interval must be > 0")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.URL != "" {
		return nil
	}
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
