package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/market-ingest/internal/metrics"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/normalize"
)

// ErrRateLimited is returned when the shared request budget is spent.
var ErrRateLimited = errors.New("backfill rate limit exceeded")

// rateLimitID is the cache identifier of the shared request budget.
const rateLimitID = "backfill:binance"

// Cache holds fetched candle pages and the request budget. *cache.Redis
// implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CheckRateLimit(ctx context.Context, identifier string, limit int64, window time.Duration) (bool, error)
}

// Store persists candles. store.Store implements it.
type Store interface {
	InsertCandles(ctx context.Context, candles []model.Candle) (int, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// Config holds backfill job configuration.
type Config struct {
	Timeframes  []string      // Default: 1h, 4h, 1d
	Limit       int           // Candles per request, 1..1000 (default: 100)
	Quote       string        // Quote asset appended to symbols (default: USDT)
	Interval    time.Duration // Cycle interval (default: 1h)
	Concurrency int           // Max concurrent requests (default: 2)
	Spacing     time.Duration // Pause after each request (default: 100ms)
	Timeout     time.Duration // Per-request timeout (default: 30s)
	RateLimit   int           // Requests per RateWindow, 0 = unlimited
	RateWindow  time.Duration // Default: 1m
	CacheTTL    time.Duration // Default: 1h
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeframes:  []string{"1h", "4h", "1d"},
		Limit:       100,
		Quote:       "USDT",
		Interval:    time.Hour,
		Concurrency: 2,
		Spacing:     100 * time.Millisecond,
		Timeout:     30 * time.Second,
		RateLimit:   1200,
		RateWindow:  time.Minute,
		CacheTTL:    time.Hour,
	}
}

// Summary reports the outcome of one collection cycle.
type Summary struct {
	Requests int
	Cached   int
	Candles  int
	Errors   int
	Duration time.Duration
}

// Job periodically collects historical candles.
type Job struct {
	cfg     Config
	client  *Client
	cache   Cache
	store   Store
	symbols model.SubscriptionSet
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Job. A nil cache disables caching and rate limiting.
func New(cfg Config, client *Client, cache Cache, store Store, symbols model.SubscriptionSet, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = def.Timeframes
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Limit > MaxKlineLimit {
		cfg.Limit = MaxKlineLimit
	}
	if cfg.Quote == "" {
		cfg.Quote = def.Quote
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	return &Job{
		cfg:     cfg,
		client:  client,
		cache:   cache,
		store:   store,
		symbols: symbols,
		logger:  logger.With("component", "backfill"),
	}
}

// Start runs one cycle immediately and then one per interval until Stop.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		return errors.New("backfill job already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go j.run(runCtx)

	j.logger.Info("backfill job started",
		"interval", j.cfg.Interval,
		"symbols", j.symbols.Len(),
		"timeframes", strings.Join(j.cfg.Timeframes, ","),
	)
	return nil
}

// Stop cancels in-flight requests and waits for the loop to exit.
func (j *Job) Stop(ctx context.Context) error {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("backfill job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce collects every symbol x timeframe pair. Failures are logged and
// counted; they never abort the cycle.
func (j *Job) RunOnce(ctx context.Context) Summary {
	start := time.Now()

	var requests, cached, candles, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Concurrency)

	for _, symbol := range j.symbols.Symbols() {
		for _, tf := range j.cfg.Timeframes {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := j.collect(gctx, symbol, tf, j.cfg.Limit)
				requests.Add(1)
				if err != nil {
					failed.Add(1)
					j.logger.Warn("backfill failed",
						"symbol", symbol,
						"timeframe", tf,
						"error", err,
					)
				} else if res.cached {
					cached.Add(1)
				} else {
					candles.Add(int64(res.stored))
				}

				if !res.cached && j.cfg.Spacing > 0 {
					select {
					case <-gctx.Done():
					case <-time.After(j.cfg.Spacing):
					}
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	sum := Summary{
		Requests: int(requests.Load()),
		Cached:   int(cached.Load()),
		Candles:  int(candles.Load()),
		Errors:   int(failed.Load()),
		Duration: time.Since(start),
	}
	j.logger.Info("backfill cycle complete",
		"requests", sum.Requests,
		"cached", sum.Cached,
		"candles", sum.Candles,
		"errors", sum.Errors,
		"duration", sum.Duration,
	)
	return sum
}

// Collect returns up to limit candles for symbol at timeframe. A cached page
// is returned as is; otherwise the page is fetched, cached and upserted.
func (j *Job) Collect(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	res, err := j.collect(ctx, symbol, timeframe, limit)
	return res.candles, err
}

// History reads stored candles, newest first.
func (j *Job) History(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = j.cfg.Limit
	}
	return j.store.Candles(ctx, strings.ToUpper(symbol), timeframe, limit)
}

type collectResult struct {
	candles []model.Candle
	cached  bool
	stored  int
}

func (j *Job) collect(ctx context.Context, symbol, timeframe string, limit int) (collectResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if limit <= 0 {
		limit = j.cfg.Limit
	}
	if limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	key := CacheKey(symbol, timeframe, limit)
	if j.cache != nil {
		if candles, ok := j.fromCache(ctx, key); ok {
			j.logger.Debug("historical data served from cache", "symbol", symbol, "timeframe", timeframe)
			return collectResult{candles: candles, cached: true}, nil
		}

		if j.cfg.RateLimit > 0 {
			allowed, err := j.cache.CheckRateLimit(ctx, rateLimitID, int64(j.cfg.RateLimit), j.cfg.RateWindow)
			if err != nil {
				j.logger.Warn("rate limit check failed", "error", err)
			} else if !allowed {
				return collectResult{}, ErrRateLimited
			}
		}
	}

	rows, err := j.client.Klines(ctx, symbol+j.cfg.Quote, Interval(timeframe), limit)
	if err != nil {
		return collectResult{}, err
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := normalize.NormalizeKline(symbol, timeframe, row)
		if err != nil {
			j.logger.Debug("discarding kline", "symbol", symbol, "timeframe", timeframe, "error", err)
			continue
		}
		candles = append(candles, c)
	}

	if j.cache != nil {
		if data, err := json.Marshal(candles); err == nil {
			if err := j.cache.SetWithExpiry(ctx, key, data, j.cfg.CacheTTL); err != nil {
				j.logger.Warn("cache historical data failed", "key", key, "error", err)
			}
		}
	}

	n, err := j.store.InsertCandles(ctx, candles)
	if err != nil {
		return collectResult{candles: candles}, fmt.Errorf("store candles %s %s: %w", symbol, timeframe, err)
	}
	metrics.BackfillCandles.WithLabelValues(timeframe).Add(float64(n))

	return collectResult{candles: candles, stored: n}, nil
}

func (j *Job) fromCache(ctx context.Context, key string) ([]model.Candle, bool) {
	data, ok, err := j.cache.Get(ctx, key)
	if err != nil {
		j.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var candles []model.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, false
	}
	return candles, true
}

// CacheKey is the cache key of one fetched candle page.
func CacheKey(symbol, timeframe string, limit int) string {
	return fmt.Sprintf("historical:%s:%s:%d", symbol, timeframe, limit)
}
