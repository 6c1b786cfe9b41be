package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-ingest/internal/feed"
	"github.com/rickgao/market-ingest/internal/metrics"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/normalize"
)

// Manager keeps one source connection alive for the lifetime of a run.
type Manager interface {
	// Start launches the connection loop and returns immediately.
	// Connection failures are never returned; they drive reconnects.
	Start(ctx context.Context) error

	// Stop cancels any pending reconnect, closes the transport and waits
	// for the connection loop to exit. Safe to call more than once.
	Stop(ctx context.Context) error

	// State returns a snapshot of the connection state.
	State() ConnectionState

	// Source identifies the managed source.
	Source() model.Source
}

// Handlers receive the Manager's output. All are optional and are called
// from the connection goroutine, so a slow handler delays that source only.
type Handlers struct {
	// OnTick receives every normalized tick, in arrival order.
	OnTick func(ctx context.Context, tick model.Tick)

	// OnReconnect is called before each backoff wait.
	OnReconnect func(attempt int, delay time.Duration, cause error)

	// OnExhausted is called once when MaxAttempts is exceeded.
	OnExhausted func(err *ExhaustedError)
}

// manager implements the Manager interface.
type manager struct {
	cfg      ManagerConfig
	adapter  feed.Adapter
	symbols  model.SubscriptionSet
	dial     Dialer
	handlers Handlers
	logger   *slog.Logger
	source   string

	mu        sync.Mutex
	state     ConnectionState
	transport Transport
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a Connection Manager for adapter's source.
// A nil dial uses WebSocketDialer(cfg.Transport).
func NewManager(cfg ManagerConfig, adapter feed.Adapter, symbols model.SubscriptionSet, dial Dialer, handlers Handlers, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	src := adapter.Name()
	logger = logger.With("source", src)
	if dial == nil {
		tc := cfg.Transport
		tc.Source = src.String()
		dial = WebSocketDialer(tc, logger)
	}

	return &manager{
		cfg:      cfg,
		adapter:  adapter,
		symbols:  symbols,
		dial:     dial,
		handlers: handlers,
		logger:   logger,
		source:   src.String(),
		state: ConnectionState{
			Source: src,
			State:  StateDisconnected,
			Since:  time.Now(),
		},
		done: make(chan struct{}),
	}
}

// Source returns the managed source.
func (m *manager) Source() model.Source {
	return m.adapter.Name()
}

// State returns a snapshot of the connection state.
func (m *manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start launches the connection loop.
func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	go m.run(runCtx)

	m.logger.Info("connection manager started", "symbols", m.symbols.Len())
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	started := m.started
	cancel := m.cancel
	m.mu.Unlock()

	if !started {
		m.setState(StateDisconnected, ReasonShutdown)
		return nil
	}

	cancel()
	m.closeTransport()

	select {
	case <-m.done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, connection loop still running")
		return ctx.Err()
	}

	m.setState(StateDisconnected, ReasonShutdown)
	m.logger.Info("connection manager stopped")
	return nil
}

// run drives the state machine until ctx is cancelled or attempts run out.
func (m *manager) run(ctx context.Context) {
	defer close(m.done)

	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			m.setState(StateDisconnected, ReasonShutdown)
			return
		}

		m.mu.Lock()
		m.state.ReconnectAttempt++
		attempt := m.state.ReconnectAttempt
		m.mu.Unlock()

		m.setState(StateDisconnected, err.Error())

		if m.cfg.MaxAttempts > 0 && attempt > m.cfg.MaxAttempts {
			exhausted := &ExhaustedError{
				Source:    m.adapter.Name(),
				Attempts:  attempt - 1,
				LastError: err,
			}
			m.setState(StateDisconnected, ReasonExhausted)
			m.logger.Error("giving up on source", "attempts", exhausted.Attempts, "error", err)
			if m.handlers.OnExhausted != nil {
				m.handlers.OnExhausted(exhausted)
			}
			return
		}

		delay := Backoff(m.cfg.ReconnectBaseWait, m.cfg.ReconnectMaxWait, attempt)
		metrics.Reconnects.WithLabelValues(m.source).Inc()
		m.logger.Warn("connection lost, reconnecting",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if m.handlers.OnReconnect != nil {
			m.handlers.OnReconnect(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.setState(StateDisconnected, ReasonShutdown)
			return
		case <-timer.C:
		}
	}
}

// session runs one connect-subscribe-read cycle. It always returns a
// non-nil error describing why the session ended.
func (m *manager) session(ctx context.Context) error {
	m.setState(StateConnecting, "")

	t, err := m.dial(ctx, m.adapter.Endpoint(m.symbols))
	if err != nil {
		return &TransportError{Source: m.adapter.Name(), Op: "dial", Err: err}
	}
	m.setTransport(t)
	defer m.closeTransport()

	sub, err := m.adapter.BuildSubscription(m.symbols)
	if err != nil {
		return &TransportError{Source: m.adapter.Name(), Op: "subscribe", Err: err}
	}
	if sub != nil {
		if err := t.Send(sub); err != nil {
			return &TransportError{Source: m.adapter.Name(), Op: "subscribe", Err: err}
		}
	}
	m.setState(StateSubscribed, "")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-t.Errors():
			return &TransportError{Source: m.adapter.Name(), Op: "read", Err: err}
		case msg := <-t.Messages():
			m.onFrame(ctx, msg)
		}
	}
}

// onFrame handles one inbound frame. Bad frames are discarded without
// touching the connection state.
func (m *manager) onFrame(ctx context.Context, msg TimestampedMessage) {
	if !m.adapter.IsTickerFrame(msg.Data) {
		return
	}

	raw, err := m.adapter.ParseFrame(msg.Data)
	if err != nil {
		metrics.FramesDiscarded.WithLabelValues(m.source, metrics.ReasonParse).Inc()
		m.logger.Warn("discarding unparseable frame", "error", err, "bytes", len(msg.Data))
		return
	}
	m.markStreaming()

	tick, err := normalize.Normalize(raw, msg.ReceivedAt)
	if err != nil {
		metrics.FramesDiscarded.WithLabelValues(m.source, metrics.ReasonNormalize).Inc()
		m.logger.Warn("discarding invalid tick", "error", err)
		return
	}

	metrics.TicksTotal.WithLabelValues(m.source).Inc()
	if m.handlers.OnTick != nil {
		m.handlers.OnTick(ctx, tick)
	}
}

// markStreaming enters Streaming on the first decodable ticker frame of a
// session and resets the reconnect counter.
func (m *manager) markStreaming() {
	m.mu.Lock()
	if m.state.State == StateStreaming {
		m.mu.Unlock()
		return
	}
	m.state.ReconnectAttempt = 0
	m.mu.Unlock()

	m.setState(StateStreaming, "")
}

func (m *manager) setState(s State, reason string) {
	m.mu.Lock()
	if m.state.State == s && m.state.Reason == reason {
		m.mu.Unlock()
		return
	}
	prev := m.state.State
	m.state.State = s
	m.state.Reason = reason
	m.state.Since = time.Now()
	attempt := m.state.ReconnectAttempt
	m.mu.Unlock()

	if s == StateStreaming {
		metrics.ConnectionStreaming.WithLabelValues(m.source).Set(1)
	} else {
		metrics.ConnectionStreaming.WithLabelValues(m.source).Set(0)
	}

	m.logger.Debug("connection state changed",
		"from", prev,
		"to", s,
		"reason", reason,
		"attempt", attempt,
	)
}

func (m *manager) setTransport(t Transport) {
	m.mu.Lock()
	m.transport = t
	m.mu.Unlock()
}

func (m *manager) closeTransport() {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	if t != nil {
		if err := t.Close(); err != nil {
			m.logger.Debug("transport close", "error", err)
		}
	}
}
