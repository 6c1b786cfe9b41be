package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/market-ingest/internal/metrics"
)

// DefaultBufferSize is used when Subscribe is given a non-positive buffer.
const DefaultBufferSize = 256

// Bus fans events out to subscribers without blocking publishers.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// Subscription receives events of the kinds it was created with.
type Subscription struct {
	// C delivers events. It is closed by Close or when the bus closes.
	C <-chan Event

	ch      chan Event
	id      uint64
	kinds   map[Kind]struct{} // Empty = all kinds
	bus     *Bus
	dropped atomic.Uint64
	once    sync.Once
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers a subscriber for kinds (all kinds if none given).
// Subscribing to a closed bus returns an already-closed subscription.
func (b *Bus) Subscribe(buffer int, kinds ...Kind) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	ch := make(chan Event, buffer)
	s := &Subscription{
		C:     ch,
		ch:    ch,
		kinds: make(map[Kind]struct{}, len(kinds)),
		bus:   b,
	}
	for _, k := range kinds {
		s.kinds[k] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(ch) })
		return s
	}
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	return s
}

// Publish delivers ev to every interested subscriber. It never blocks.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subs {
		if !s.wants(ev.Kind) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			n := s.dropped.Add(1)
			metrics.EventsDropped.WithLabelValues(string(ev.Kind)).Inc()
			// Log the first drop and then every 1000th
			if n == 1 || n%1000 == 0 {
				b.logger.Warn("subscriber buffer full, dropping event",
					"kind", ev.Kind,
					"subscription", s.id,
					"dropped", n,
				)
			}
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		s.once.Do(func() { close(s.ch) })
	}
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}

// Dropped returns how many events were dropped for this subscriber.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}
