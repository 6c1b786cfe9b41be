package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/market-ingest/internal/model"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis_SetGet(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.SetWithExpiry(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "key should have expired")
}

func TestRedis_GetMissing(t *testing.T) {
	r, _ := newTestRedis(t)

	got, ok, err := r.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRedis_IncrementExpire(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := r.Increment(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	require.NoError(t, r.Expire(ctx, "counter", 10*time.Second))
	assert.Equal(t, 10*time.Second, mr.TTL("counter"))
}

func TestRedis_MarketData(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	_, ok, err := r.MarketData(ctx, "BTC")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set("market:BTC",
		`{"symbol":"BTC","price":50000.5,"volume":100,"high24h":0,"low24h":0,"change24h":0.025,"timestamp":"2024-01-15T12:00:00Z","source":"binance"}`))

	tick, ok, err := r.MarketData(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BTC", tick.Symbol)
	assert.Equal(t, 50000.5, tick.Price)
	assert.Equal(t, model.SourceBinance, tick.Source)
	assert.True(t, tick.Timestamp.Equal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)))

	require.NoError(t, mr.Set("market:ETH", "not json"))
	_, _, err = r.MarketData(ctx, "ETH")
	assert.Error(t, err)
}

func TestRedis_CheckRateLimit(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.CheckRateLimit(ctx, "binance:klines", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := r.CheckRateLimit(ctx, "binance:klines", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "4th request should be limited")
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:binance:klines"))

	// A new window starts after expiry
	mr.FastForward(time.Minute + time.Second)
	ok, err = r.CheckRateLimit(ctx, "binance:klines", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedis_PingAndErrors(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Ping(ctx))

	mr.SetError("server down")
	assert.Error(t, r.Ping(ctx))
	assert.Error(t, r.SetWithExpiry(ctx, "k", []byte("v"), time.Second))
	_, _, err := r.Get(ctx, "k")
	assert.Error(t, err)
	_, err = r.CheckRateLimit(ctx, "x", 1, time.Second)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Positive(t, cfg.PoolSize)
}
