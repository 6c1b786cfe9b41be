package metrics

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Discard reasons for FramesDiscarded.
const (
	ReasonParse     = "parse"
	ReasonNormalize = "normalize"
	ReasonBuffer    = "buffer"
)

// Sink write results for SinkWrites.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_ticks_total", Help: "Count of normalized ticks per source"},
		[]string{"source"},
	)
	FramesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_frames_discarded_total", Help: "Frames dropped as unparseable, invalid or over buffer"},
		[]string{"source", "reason"},
	)
	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_reconnects_total", Help: "Scheduled reconnect attempts"},
		[]string{"source"},
	)
	ConnectionStreaming = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ingest_connection_streaming", Help: "1 while the source connection is streaming"},
		[]string{"source"},
	)
	SinkWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_sink_writes_total", Help: "Cache and store writes by outcome"},
		[]string{"sink", "result"},
	)
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_events_dropped_total", Help: "Events dropped because a subscriber was full"},
		[]string{"kind"},
	)
	BackfillCandles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_backfill_candles_total", Help: "Candles stored by the backfill job"},
		[]string{"timeframe"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		FramesDiscarded,
		Reconnects,
		ConnectionStreaming,
		SinkWrites,
		EventsDropped,
		BackfillCandles,
	)
}

// NewMux returns a mux serving the default registry at path.
// Callers may register further handlers (e.g. /health) on it.
func NewMux(path string) *http.ServeMux {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return mux
}

// Serve starts an HTTP server on addr with the given handler.
// The caller owns shutdown via the returned server. Listen failures are
// logged; http.ErrServerClosed after Shutdown is not.
func Serve(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "addr", addr, "error", err)
		}
	}()
	return srv
}
