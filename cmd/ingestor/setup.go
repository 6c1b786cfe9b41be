package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/market-ingest/internal/backfill"
	"github.com/rickgao/market-ingest/internal/cache"
	"github.com/rickgao/market-ingest/internal/config"
	"github.com/rickgao/market-ingest/internal/connection"
	"github.com/rickgao/market-ingest/internal/feed"
	"github.com/rickgao/market-ingest/internal/hub"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/sink"
)

// newLogger builds the process logger from log settings.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// buildAdapters creates an adapter for every enabled source.
func buildAdapters(sources []config.SourceConfig) ([]feed.Adapter, error) {
	adapters := make([]feed.Adapter, 0, len(sources))
	for _, s := range sources {
		if !s.IsEnabled() {
			continue
		}
		a, err := feed.New(s.Name, feed.Config{URL: s.URL, Quote: s.Quote})
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Name, err)
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// hubConfig maps connection settings onto the hub.
func hubConfig(cfg *config.IngestorConfig) hub.Config {
	hc := hub.DefaultConfig()

	c := cfg.Connections
	hc.Connection.ReconnectBaseWait = c.ReconnectBaseDelay
	hc.Connection.ReconnectMaxWait = c.ReconnectMaxDelay
	hc.Connection.MaxAttempts = c.MaxAttempts
	hc.Connection.Transport = connection.TransportConfig{
		HandshakeTimeout: connection.DefaultTransportConfig().HandshakeTimeout,
		PingInterval:     c.PingInterval,
		PingTimeout:      c.PingTimeout,
		WriteTimeout:     c.WriteTimeout,
		BufferSize:       c.BufferSize,
	}

	hc.MaxAttempts = make(map[model.Source]int)
	for _, s := range cfg.Sources {
		if s.MaxAttempts != nil {
			hc.MaxAttempts[model.Source(strings.ToLower(s.Name))] = *s.MaxAttempts
		}
	}
	return hc
}

// sinkConfig maps sink settings onto the writer.
func sinkConfig(cfg config.SinkConfig) sink.Config {
	return sink.Config{CacheTTL: cfg.CacheTTL, WriteTimeout: cfg.WriteTimeout}
}

// backfillConfig maps backfill settings onto the job.
func backfillConfig(cfg config.BackfillConfig) backfill.Config {
	return backfill.Config{
		Timeframes:  cfg.Timeframes,
		Limit:       cfg.Limit,
		Interval:    cfg.Interval,
		Concurrency: cfg.Concurrency,
		Spacing:     cfg.Spacing,
		Timeout:     cfg.Timeout,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
		CacheTTL:    cfg.CacheTTL,
	}
}

// newCache creates the Redis client. A URL takes precedence over the fields.
func newCache(cfg config.RedisConfig, logger *slog.Logger) (*cache.Redis, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		return cache.NewRedisFromClient(redis.NewClient(opts), logger), nil
	}

	rc := cache.DefaultConfig()
	if cfg.Addr != "" {
		rc.Addr = cfg.Addr
	}
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	return cache.NewRedis(rc, logger), nil
}
