package events

import (
	"time"

	"github.com/rickgao/market-ingest/internal/model"
)

// Kind identifies an event type.
type Kind string

const (
	KindTick                Kind = "tick"
	KindSinkPersisted       Kind = "sinkPersisted"
	KindSinkError           Kind = "sinkError"
	KindConnectionExhausted Kind = "connectionExhausted"
)

// Kinds lists every event kind.
func Kinds() []Kind {
	return []Kind{KindTick, KindSinkPersisted, KindSinkError, KindConnectionExhausted}
}

// Event is one notification from the hub. Fields not relevant to Kind are zero.
type Event struct {
	Kind   Kind
	Time   time.Time
	Source model.Source
	Symbol string
	Sink   string     // "cache" or "store" for sink events
	Tick   model.Tick // Set for tick and sink events
	Err    error      // Set for sinkError and connectionExhausted
}

// Tick returns a tick event.
func Tick(t model.Tick) Event {
	return Event{Kind: KindTick, Time: time.Now(), Source: t.Source, Symbol: t.Symbol, Tick: t}
}

// SinkPersisted returns a sinkPersisted event for sink.
func SinkPersisted(t model.Tick, sink string) Event {
	return Event{Kind: KindSinkPersisted, Time: time.Now(), Source: t.Source, Symbol: t.Symbol, Sink: sink, Tick: t}
}

// SinkError returns a sinkError event for sink.
func SinkError(t model.Tick, sink string, err error) Event {
	return Event{Kind: KindSinkError, Time: time.Now(), Source: t.Source, Symbol: t.Symbol, Sink: sink, Tick: t, Err: err}
}

// ConnectionExhausted returns a connectionExhausted event for source.
func ConnectionExhausted(source model.Source, err error) Event {
	return Event{Kind: KindConnectionExhausted, Time: time.Now(), Source: source, Err: err}
}
