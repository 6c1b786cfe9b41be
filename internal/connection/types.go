package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/market-ingest/internal/model"
)

// Errors
var (
	ErrNotConnected        = errors.New("not connected")
	ErrStaleConnection     = errors.New("connection stale (no ping)")
	ErrAlreadyClosed       = errors.New("already closed")
	ErrConnectionClosed    = errors.New("connection closed by peer")
	ErrConnectionExhausted = errors.New("reconnect attempts exhausted")
	ErrAlreadyStarted      = errors.New("manager already started")
)

// Disconnect reasons reported in ConnectionState.Reason.
const (
	ReasonShutdown  = "shutdown"
	ReasonExhausted = "exhausted"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is a step in the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ConnectionState is a point-in-time snapshot of one source's connection.
type ConnectionState struct {
	Source           model.Source
	State            State
	Reason           string    // Why the connection is Disconnected; empty otherwise
	ReconnectAttempt int       // Consecutive failed sessions; reset on Streaming
	Since            time.Time // When State was entered
}

// TransportError is a connection-level failure. It triggers the reconnect policy.
type TransportError struct {
	Source model.Source
	Op     string // "dial", "subscribe", "read"
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExhaustedError is reported once a source gives up reconnecting.
type ExhaustedError struct {
	Source    model.Source
	Attempts  int
	LastError error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Source, ErrConnectionExhausted, e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error { return ErrConnectionExhausted }

// TransportConfig configures a WebSocket transport.
type TransportConfig struct {
	Source           string        // Source label for drop metrics
	URL              string        // WebSocket URL
	HandshakeTimeout time.Duration // Dial handshake deadline
	PingInterval     time.Duration // How often we ping the server
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultTransportConfig returns sensible defaults.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// ManagerConfig configures a Connection Manager.
type ManagerConfig struct {
	ReconnectBaseWait time.Duration // Base wait for reconnection
	ReconnectMaxWait  time.Duration // Max wait for reconnection
	MaxAttempts       int           // Reconnects before giving up (0 = retry forever)
	Transport         TransportConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MaxAttempts:       0,
		Transport:         DefaultTransportConfig(),
	}
}
