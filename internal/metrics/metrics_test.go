package metrics

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistered(t *testing.T) {
	TicksTotal.WithLabelValues("binance").Inc()
	SinkWrites.WithLabelValues("cache", ResultOK).Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	want := map[string]bool{
		"ingest_ticks_total":       false,
		"ingest_sink_writes_total": false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestConnectionStreamingGauge(t *testing.T) {
	ConnectionStreaming.WithLabelValues("coinbase").Set(1)
	if got := testutil.ToFloat64(ConnectionStreaming.WithLabelValues("coinbase")); got != 1 {
		t.Errorf("streaming gauge = %v, want 1", got)
	}
	ConnectionStreaming.WithLabelValues("coinbase").Set(0)
	if got := testutil.ToFloat64(ConnectionStreaming.WithLabelValues("coinbase")); got != 0 {
		t.Errorf("streaming gauge = %v, want 0", got)
	}
}

func TestNewMux(t *testing.T) {
	Reconnects.WithLabelValues("binance").Inc()

	srv := httptest.NewServer(NewMux(""))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ingest_reconnects_total") {
		t.Errorf("/metrics body missing ingest_reconnects_total")
	}
}

// syncBuffer guards a bytes.Buffer written from the server goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServe_LogsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	srv := Serve(ln.Addr().String(), NewMux(""), logger)
	defer srv.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "http server error") {
		if time.Now().After(deadline) {
			t.Fatalf("listen error on busy port not logged, log = %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(out.String(), ln.Addr().String()) {
		t.Errorf("log missing addr: %q", out.String())
	}
}

func TestServe_ShutdownNotLogged(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	srv := Serve(addr, NewMux(""), logger)

	// Wait until the server answers before shutting it down.
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up on %s: %v", addr, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if strings.Contains(out.String(), "http server error") {
		t.Errorf("graceful shutdown logged as error: %q", out.String())
	}
}
