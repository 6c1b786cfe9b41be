package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-ingest/internal/events"
	"github.com/rickgao/market-ingest/internal/metrics"
	"github.com/rickgao/market-ingest/internal/model"
)

// Sink names reported in events and metrics.
const (
	SinkCache = "cache"
	SinkStore = "store"
)

// Cache is the short-lived latest-tick store.
type Cache interface {
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Store is the durable tick history.
type Store interface {
	InsertTick(ctx context.Context, tick model.Tick) (model.TickRecord, error)
}

// Publisher receives sink events.
type Publisher interface {
	Publish(ev events.Event)
}

// Config configures the Writer.
type Config struct {
	CacheTTL     time.Duration // Expiry of market:{symbol} entries
	WriteTimeout time.Duration // Bound on each sink write
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:     60 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Error is a failed write to one sink.
type Error struct {
	Sink   string
	Symbol string
	Source model.Source
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s write %s/%s: %v", e.Sink, e.Source, e.Symbol, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result reports the outcome of one Write. Errors are *Error.
type Result struct {
	Record   model.TickRecord // Zero unless the store write succeeded
	CacheErr error
	StoreErr error
}

// OK reports whether every configured sink accepted the tick.
func (r Result) OK() bool {
	return r.CacheErr == nil && r.StoreErr == nil
}

// Writer fans one tick out to the cache and the store.
// It is safe for concurrent use by all Connection Managers.
type Writer struct {
	cfg    Config
	cache  Cache
	store  Store
	pub    Publisher
	logger *slog.Logger
}

// NewWriter creates a Writer. A nil cache or store is skipped; a nil
// publisher drops events.
func NewWriter(cfg Config, cache Cache, store Store, pub Publisher, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	return &Writer{
		cfg:    cfg,
		cache:  cache,
		store:  store,
		pub:    pub,
		logger: logger,
	}
}

// Write delivers tick to both sinks and waits for both to finish.
// Cancellation of ctx does not abort in-flight writes; each is bounded by
// WriteTimeout instead.
func (w *Writer) Write(ctx context.Context, tick model.Tick) Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.WriteTimeout)
	defer cancel()

	var (
		res Result
		wg  sync.WaitGroup
	)

	if w.cache != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.CacheErr = w.writeCache(ctx, tick)
		}()
	}

	if w.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Record, res.StoreErr = w.writeStore(ctx, tick)
		}()
	}

	wg.Wait()
	return res
}

func (w *Writer) writeCache(ctx context.Context, tick model.Tick) error {
	data, err := json.Marshal(tick)
	if err == nil {
		err = w.cache.SetWithExpiry(ctx, model.CacheKey(tick.Symbol), data, w.cfg.CacheTTL)
	}
	if err != nil {
		return w.fail(SinkCache, tick, err)
	}
	w.succeed(SinkCache, tick)
	return nil
}

func (w *Writer) writeStore(ctx context.Context, tick model.Tick) (model.TickRecord, error) {
	rec, err := w.store.InsertTick(ctx, tick)
	if err != nil {
		return model.TickRecord{}, w.fail(SinkStore, tick, err)
	}
	w.succeed(SinkStore, tick)
	return rec, nil
}

func (w *Writer) succeed(sink string, tick model.Tick) {
	metrics.SinkWrites.WithLabelValues(sink, metrics.ResultOK).Inc()
	w.publish(events.SinkPersisted(tick, sink))
}

func (w *Writer) fail(sink string, tick model.Tick, err error) error {
	serr := &Error{Sink: sink, Symbol: tick.Symbol, Source: tick.Source, Err: err}
	metrics.SinkWrites.WithLabelValues(sink, metrics.ResultError).Inc()
	w.logger.Warn("sink write failed",
		"sink", sink,
		"symbol", tick.Symbol,
		"source", tick.Source,
		"error", err,
	)
	w.publish(events.SinkError(tick, sink, serr))
	return serr
}

func (w *Writer) publish(ev events.Event) {
	if w.pub != nil {
		w.pub.Publish(ev)
	}
}
