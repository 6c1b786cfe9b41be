package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/market-ingest/internal/connection"
	"github.com/rickgao/market-ingest/internal/events"
	"github.com/rickgao/market-ingest/internal/feed"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/sink"
)

// Errors
var (
	ErrNoAdapters      = errors.New("no source adapters configured")
	ErrNoSymbols       = errors.New("subscription set is empty")
	ErrAlreadyStarted  = errors.New("hub already started")
	ErrDuplicateSource = errors.New("duplicate source")
	ErrNotFound        = errors.New("no data for symbol")
)

// TickWriter persists one tick. *sink.Writer implements it.
type TickWriter interface {
	Write(ctx context.Context, tick model.Tick) sink.Result
}

// LatestCache serves the cached latest tick. *cache.Redis implements it.
type LatestCache interface {
	MarketData(ctx context.Context, symbol string) (model.Tick, bool, error)
}

// LatestStore serves the stored latest tick. store.Store implements it.
type LatestStore interface {
	LatestTick(ctx context.Context, symbol string) (model.TickRecord, bool, error)
}

// Config configures the Hub.
type Config struct {
	Connection  connection.ManagerConfig // Shared by every source
	MaxAttempts map[model.Source]int     // Per-source override of Connection.MaxAttempts
	Dialer      connection.Dialer        // Nil = WebSocket
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Connection: connection.DefaultManagerConfig()}
}

// Hub owns the Connection Managers for one run.
type Hub struct {
	cfg      Config
	adapters []feed.Adapter
	symbols  model.SubscriptionSet
	writer   TickWriter
	bus      *events.Bus
	logger   *slog.Logger

	mu       sync.RWMutex
	managers []connection.Manager
	started  bool

	cache LatestCache
	store LatestStore
}

// New creates a Hub. A nil bus gets a private one; a nil writer skips
// persistence and only publishes tick events.
func New(cfg Config, adapters []feed.Adapter, symbols model.SubscriptionSet, writer TickWriter, bus *events.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = events.NewBus(logger)
	}
	return &Hub{
		cfg:      cfg,
		adapters: adapters,
		symbols:  symbols,
		writer:   writer,
		bus:      bus,
		logger:   logger,
	}
}

// SetLatestSources sets where Latest reads from.
func (h *Hub) SetLatestSources(cache LatestCache, store LatestStore) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache = cache
	h.store = store
}

// Start constructs and starts every Connection Manager concurrently. It does
// not wait for any source to reach Streaming. Only setup errors are returned.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}
	if len(h.adapters) == 0 {
		return ErrNoAdapters
	}
	if h.symbols.Len() == 0 {
		return ErrNoSymbols
	}

	seen := make(map[model.Source]bool, len(h.adapters))
	managers := make([]connection.Manager, 0, len(h.adapters))
	for _, a := range h.adapters {
		src := a.Name()
		if seen[src] {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, src)
		}
		seen[src] = true

		cfg := h.cfg.Connection
		if n, ok := h.cfg.MaxAttempts[src]; ok {
			cfg.MaxAttempts = n
		}
		managers = append(managers, connection.NewManager(cfg, a, h.symbols, h.cfg.Dialer, h.handlers(src), h.logger))
	}

	// Manager.Start only spawns a goroutine, so a plain group is enough
	var g errgroup.Group
	for _, m := range managers {
		g.Go(func() error {
			return m.Start(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		for _, m := range managers {
			_ = m.Stop(context.WithoutCancel(ctx))
		}
		return fmt.Errorf("start managers: %w", err)
	}

	h.managers = managers
	h.started = true

	h.logger.Info("stream hub started",
		"sources", len(managers),
		"symbols", strings.Join(h.symbols.Symbols(), ","),
	)
	return nil
}

// Stop stops every Manager concurrently and waits for their transports to
// close. Pending reconnects are cancelled. Safe to call more than once.
func (h *Hub) Stop(ctx context.Context) error {
	h.mu.RLock()
	managers := h.managers
	h.mu.RUnlock()

	h.logger.Info("stopping stream hub")

	var g errgroup.Group
	for _, m := range managers {
		g.Go(func() error {
			if err := m.Stop(ctx); err != nil {
				return fmt.Errorf("stop %s: %w", m.Source(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	h.logger.Info("stream hub stopped")
	return err
}

// Status maps each source to whether it is currently Streaming.
func (h *Hub) Status() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]bool, len(h.adapters))
	if len(h.managers) == 0 {
		for _, a := range h.adapters {
			out[a.Name().String()] = false
		}
		return out
	}
	for _, m := range h.managers {
		out[m.Source().String()] = m.State().State == connection.StateStreaming
	}
	return out
}

// States returns the detailed connection state of each started source.
func (h *Hub) States() map[string]connection.ConnectionState {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]connection.ConnectionState, len(h.managers))
	for _, m := range h.managers {
		out[m.Source().String()] = m.State()
	}
	return out
}

// Subscribe registers for events of kinds (all if none). Close the
// returned Subscription to unsubscribe.
func (h *Hub) Subscribe(buffer int, kinds ...events.Kind) *events.Subscription {
	return h.bus.Subscribe(buffer, kinds...)
}

// Bus returns the hub's event bus.
func (h *Hub) Bus() *events.Bus {
	return h.bus
}

// Latest returns the most recent tick for symbol, read from the cache and
// falling back to the store.
func (h *Hub) Latest(ctx context.Context, symbol string) (model.Tick, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	h.mu.RLock()
	cache, store := h.cache, h.store
	h.mu.RUnlock()

	if cache != nil {
		tick, ok, err := cache.MarketData(ctx, symbol)
		if err != nil {
			h.logger.Warn("cache read failed, falling back to store", "symbol", symbol, "error", err)
		} else if ok {
			return tick, nil
		}
	}

	if store != nil {
		rec, ok, err := store.LatestTick(ctx, symbol)
		if err != nil {
			return model.Tick{}, fmt.Errorf("latest %s: %w", symbol, err)
		}
		if ok {
			return rec.Tick, nil
		}
	}

	return model.Tick{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
}

func (h *Hub) handlers(src model.Source) connection.Handlers {
	return connection.Handlers{
		OnTick: h.handleTick,
		OnExhausted: func(err *connection.ExhaustedError) {
			h.bus.Publish(events.ConnectionExhausted(src, err))
		},
	}
}

// handleTick writes tick to the sinks, then announces it. Sink outcomes are
// published by the writer itself.
func (h *Hub) handleTick(ctx context.Context, tick model.Tick) {
	if h.writer != nil {
		h.writer.Write(ctx, tick)
	}
	h.bus.Publish(events.Tick(tick))
}
