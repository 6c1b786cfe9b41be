package sink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/market-ingest/internal/events"
	"github.com/rickgao/market-ingest/internal/model"
)

var testTick = model.Tick{
	Symbol:    "BTC",
	Price:     50000.5,
	Volume:    100,
	Timestamp: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	Source:    model.SourceBinance,
}

type fakeCache struct {
	mu    sync.Mutex
	err   error
	calls int
	key   string
	value []byte
	ttl   time.Duration
}

func (c *fakeCache) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.key, c.value, c.ttl = key, value, ttl
	return c.err
}

type fakeStore struct {
	mu    sync.Mutex
	err   error
	calls int
	block bool
}

func (s *fakeStore) InsertTick(ctx context.Context, tick model.Tick) (model.TickRecord, error) {
	s.mu.Lock()
	s.calls++
	block, err := s.block, s.err
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return model.TickRecord{}, ctx.Err()
	}
	if err != nil {
		return model.TickRecord{}, err
	}
	return model.TickRecord{ID: uuid.New(), Tick: tick, InsertedAt: time.Now()}, nil
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) bySink() map[string]events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]events.Event, len(r.evs))
	for _, ev := range r.evs {
		out[ev.Sink] = ev
	}
	return out
}

func TestWriter_BothSucceed(t *testing.T) {
	cache := &fakeCache{}
	store := &fakeStore{}
	rec := &recorder{}
	w := NewWriter(Config{CacheTTL: 30 * time.Second}, cache, store, rec, nil)

	res := w.Write(context.Background(), testTick)
	if !res.OK() {
		t.Fatalf("Write() = %+v, want OK", res)
	}
	if res.Record.ID == uuid.Nil {
		t.Error("Record.ID is nil")
	}

	if cache.key != "market:BTC" {
		t.Errorf("cache key = %q, want market:BTC", cache.key)
	}
	if cache.ttl != 30*time.Second {
		t.Errorf("cache ttl = %v, want 30s", cache.ttl)
	}
	var cached model.Tick
	if err := json.Unmarshal(cache.value, &cached); err != nil {
		t.Fatalf("cached value: %v", err)
	}
	if !cached.Timestamp.Equal(testTick.Timestamp) || cached.Price != testTick.Price {
		t.Errorf("cached tick = %+v, want %+v", cached, testTick)
	}

	got := rec.bySink()
	for _, sink := range []string{SinkCache, SinkStore} {
		ev, ok := got[sink]
		if !ok {
			t.Errorf("no event for sink %q", sink)
			continue
		}
		if ev.Kind != events.KindSinkPersisted {
			t.Errorf("%s event kind = %v, want sinkPersisted", sink, ev.Kind)
		}
		if ev.Symbol != "BTC" || ev.Source != model.SourceBinance {
			t.Errorf("%s event = %+v", sink, ev)
		}
	}
}

func TestWriter_SinkIndependence(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		cacheErr error
		storeErr error
		failSink string
		okSink   string
	}{
		{"cache fails", boom, nil, SinkCache, SinkStore},
		{"store fails", nil, boom, SinkStore, SinkCache},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &fakeCache{err: tt.cacheErr}
			store := &fakeStore{err: tt.storeErr}
			rec := &recorder{}
			w := NewWriter(DefaultConfig(), cache, store, rec, nil)

			res := w.Write(context.Background(), testTick)

			if cache.calls != 1 || store.calls != 1 {
				t.Errorf("calls cache=%d store=%d, want 1 each", cache.calls, store.calls)
			}
			if res.OK() {
				t.Error("Write() OK, want failure")
			}

			got := rec.bySink()
			failed := got[tt.failSink]
			if failed.Kind != events.KindSinkError {
				t.Errorf("%s event kind = %v, want sinkError", tt.failSink, failed.Kind)
			}
			var serr *Error
			if !errors.As(failed.Err, &serr) || serr.Sink != tt.failSink {
				t.Errorf("%s event err = %v, want *Error with sink %q", tt.failSink, failed.Err, tt.failSink)
			}
			if !errors.Is(failed.Err, boom) {
				t.Errorf("errors.Is(boom) = false for %v", failed.Err)
			}
			if got[tt.okSink].Kind != events.KindSinkPersisted {
				t.Errorf("%s event kind = %v, want sinkPersisted", tt.okSink, got[tt.okSink].Kind)
			}
		})
	}
}

func TestWriter_DetachedFromCallerCancel(t *testing.T) {
	store := &fakeStore{}
	w := NewWriter(DefaultConfig(), nil, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := w.Write(ctx, testTick)
	if res.StoreErr != nil {
		t.Errorf("StoreErr = %v, want nil for cancelled caller context", res.StoreErr)
	}
	if res.CacheErr != nil {
		t.Errorf("CacheErr = %v, want nil with no cache", res.CacheErr)
	}
}

func TestWriter_WriteTimeout(t *testing.T) {
	store := &fakeStore{block: true}
	cache := &fakeCache{}
	rec := &recorder{}
	w := NewWriter(Config{WriteTimeout: 20 * time.Millisecond}, cache, store, rec, nil)

	start := time.Now()
	res := w.Write(context.Background(), testTick)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Write took %v, want bounded by timeout", elapsed)
	}
	if !errors.Is(res.StoreErr, context.DeadlineExceeded) {
		t.Errorf("StoreErr = %v, want deadline exceeded", res.StoreErr)
	}
	if res.CacheErr != nil {
		t.Errorf("CacheErr = %v, want nil", res.CacheErr)
	}
	if rec.bySink()[SinkStore].Kind != events.KindSinkError {
		t.Error("missing store sinkError event")
	}
}

func TestWriter_Concurrent(t *testing.T) {
	cache := &fakeCache{}
	store := &fakeStore{}
	w := NewWriter(DefaultConfig(), cache, store, events.NewBus(nil), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Write(context.Background(), testTick)
		}()
	}
	wg.Wait()

	if cache.calls != 20 || store.calls != 20 {
		t.Errorf("calls cache=%d store=%d, want 20 each", cache.calls, store.calls)
	}
}
