// Package cache is the Redis-backed short-lived store for latest ticks,
// backfill results and rate-limit counters.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/market-ingest/internal/model"
)

// Config configures the Redis client.
type Config struct {
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		PoolSize:    20,
		DialTimeout: 5 * time.Second,
	}
}

// Redis wraps a go-redis client. It is safe for concurrent use.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis creates a client for cfg. It does not connect until first use;
// call Ping to verify connectivity.
func NewRedis(cfg Config, logger *slog.Logger) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}), logger)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, logger: logger}
}

// SetWithExpiry stores value under key for ttl.
func (r *Redis) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Get returns the value under key. A missing key is (nil, false, nil).
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, true, nil
}

// Increment atomically adds one to key and returns the new value.
func (r *Redis) Increment(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

// Expire sets a ttl on key.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

// MarketData returns the cached latest tick for symbol.
func (r *Redis) MarketData(ctx context.Context, symbol string) (model.Tick, bool, error) {
	data, ok, err := r.Get(ctx, model.CacheKey(symbol))
	if err != nil || !ok {
		return model.Tick{}, false, err
	}
	var tick model.Tick
	if err := json.Unmarshal(data, &tick); err != nil {
		return model.Tick{}, false, fmt.Errorf("decode %s: %w", model.CacheKey(symbol), err)
	}
	return tick, true, nil
}

// CheckRateLimit counts one request against identifier in a fixed window
// and reports whether it is within limit.
func (r *Redis) CheckRateLimit(ctx context.Context, identifier string, limit int64, window time.Duration) (bool, error) {
	key := "ratelimit:" + identifier
	n, err := r.Increment(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	if n > limit {
		r.logger.Debug("rate limit exceeded", "identifier", identifier, "count", n, "limit", limit)
		return false, nil
	}
	return true, nil
}

// Ping verifies connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (r *Redis) Close() error {
	return r.client.Close()
}
