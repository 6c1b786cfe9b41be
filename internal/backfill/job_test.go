package backfill

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/market-ingest/internal/cache"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/store"
)

// klineServer serves klinesBody and records every requested symbol.
type klineServer struct {
	*httptest.Server
	calls atomic.Int32

	mu      sync.Mutex
	symbols []string
}

func newKlineServer(t *testing.T) *klineServer {
	t.Helper()
	ks := &klineServer{}
	ks.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ks.calls.Add(1)
		ks.mu.Lock()
		ks.symbols = append(ks.symbols, r.URL.Query().Get("symbol"))
		ks.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(klinesBody))
	}))
	t.Cleanup(ks.Close)
	return ks
}

func (ks *klineServer) requested() []string {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return append([]string(nil), ks.symbols...)
}

func newTestCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func testJobConfig() Config {
	cfg := DefaultConfig()
	cfg.Spacing = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestJob_CollectStoresAndCaches(t *testing.T) {
	ks := newKlineServer(t)
	rc, mr := newTestCache(t)
	mem := store.NewMemory()

	job := New(testJobConfig(), NewClient(ks.URL), rc, mem, model.NewSubscriptionSet("BTC"), nil)
	ctx := context.Background()

	candles, err := job.Collect(ctx, "btc", "1h", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, "BTC", candles[0].Symbol)
	assert.Equal(t, "1h", candles[0].Timeframe)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), candles[0].OpenTime)
	assert.Equal(t, 50500.0, candles[0].Close)
	assert.Equal(t, model.SourceBinance, candles[0].Source)

	assert.Equal(t, []string{"BTCUSDT"}, ks.requested())
	assert.True(t, mr.Exists("historical:BTC:1h:100"))
	assert.Equal(t, time.Hour, mr.TTL("historical:BTC:1h:100"))

	stored, err := job.History(ctx, "BTC", "1h", 10)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].OpenTime.After(stored[1].OpenTime), "history is newest first")

	// Second call is served from cache
	again, err := job.Collect(ctx, "BTC", "1h", 100)
	require.NoError(t, err)
	assert.Len(t, again, 2)
	assert.Equal(t, int32(1), ks.calls.Load())

	// A different limit is a different page
	_, err = job.Collect(ctx, "BTC", "1h", 50)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ks.calls.Load())
}

func TestJob_CollectWithoutCache(t *testing.T) {
	ks := newKlineServer(t)
	mem := store.NewMemory()

	job := New(testJobConfig(), NewClient(ks.URL), nil, mem, model.NewSubscriptionSet("ETH"), nil)

	for i := 0; i < 2; i++ {
		_, err := job.Collect(context.Background(), "ETH", "1d", 0)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), ks.calls.Load())

	// Re-fetching the same rows upserts rather than duplicates
	stored, err := mem.Candles(context.Background(), "ETH", "1d", 100)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestJob_RateLimited(t *testing.T) {
	ks := newKlineServer(t)
	rc, _ := newTestCache(t)

	cfg := testJobConfig()
	cfg.RateLimit = 1
	job := New(cfg, NewClient(ks.URL), rc, store.NewMemory(), model.NewSubscriptionSet("BTC"), nil)

	_, err := job.Collect(context.Background(), "BTC", "1h", 100)
	require.NoError(t, err)

	_, err = job.Collect(context.Background(), "BTC", "4h", 100)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(1), ks.calls.Load())
}

func TestJob_RunOnce(t *testing.T) {
	ks := newKlineServer(t)
	rc, _ := newTestCache(t)
	mem := store.NewMemory()

	cfg := testJobConfig()
	cfg.Timeframes = []string{"1h", "1d"}
	cfg.Concurrency = 3
	symbols := model.NewSubscriptionSet("BTC", "ETH", "ADA")

	job := New(cfg, NewClient(ks.URL), rc, mem, symbols, nil)

	sum := job.RunOnce(context.Background())
	assert.Equal(t, 6, sum.Requests)
	assert.Equal(t, 0, sum.Errors)
	assert.Equal(t, 0, sum.Cached)
	assert.Equal(t, 12, sum.Candles)
	assert.ElementsMatch(t,
		[]string{"BTCUSDT", "BTCUSDT", "ETHUSDT", "ETHUSDT", "ADAUSDT", "ADAUSDT"},
		ks.requested(),
	)

	sum = job.RunOnce(context.Background())
	assert.Equal(t, 6, sum.Cached)
	assert.Equal(t, int32(6), ks.calls.Load())
}

func TestJob_RunOnceCountsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BADUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(klinesBody))
	}))
	defer server.Close()

	cfg := testJobConfig()
	cfg.Timeframes = []string{"1d"}
	job := New(cfg, NewClient(server.URL), nil, store.NewMemory(), model.NewSubscriptionSet("BTC", "BAD"), nil)

	sum := job.RunOnce(context.Background())
	assert.Equal(t, 2, sum.Requests)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 2, sum.Candles)
}

func TestJob_StartStop(t *testing.T) {
	ks := newKlineServer(t)

	cfg := testJobConfig()
	cfg.Interval = time.Hour
	cfg.Timeframes = []string{"1d"}
	job := New(cfg, NewClient(ks.URL), nil, store.NewMemory(), model.NewSubscriptionSet("BTC"), nil)

	require.NoError(t, job.Start(context.Background()))
	assert.Error(t, job.Start(context.Background()), "second Start")

	require.Eventually(t, func() bool { return ks.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond,
		"first cycle runs immediately")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, job.Stop(ctx))
}

func TestNewAppliesDefaults(t *testing.T) {
	job := New(Config{Limit: 5000}, NewClient("http://unused"), nil, store.NewMemory(), model.NewSubscriptionSet("BTC"), nil)

	assert.Equal(t, MaxKlineLimit, job.cfg.Limit)
	assert.Equal(t, []string{"1h", "4h", "1d"}, job.cfg.Timeframes)
	assert.Equal(t, "USDT", job.cfg.Quote)
	assert.Equal(t, 2, job.cfg.Concurrency)
	assert.Equal(t, time.Hour, job.cfg.CacheTTL)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "historical:BTC:4h:100", CacheKey("BTC", "4h", 100))
}
