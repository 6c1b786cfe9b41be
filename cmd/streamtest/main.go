// streamtest connects to the live sources and prints normalized ticks and
// hub events to the console. Ticks go to an in-memory store; no Redis or
// PostgreSQL is needed.
//
// Usage: go run ./cmd/streamtest --symbols BTC,ETH --sources binance,coinbase
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/market-ingest/internal/config"
	"github.com/rickgao/market-ingest/internal/connection"
	"github.com/rickgao/market-ingest/internal/events"
	"github.com/rickgao/market-ingest/internal/feed"
	"github.com/rickgao/market-ingest/internal/hub"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/sink"
	"github.com/rickgao/market-ingest/internal/store"
)

func main() {
	configPath := flag.String("config", "", "optional config file; defaults are used when empty")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	sourcesFlag := flag.String("sources", "", "comma-separated sources (overrides config)")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	_ = config.LoadDotEnv(".env")

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	symbols := model.NewSubscriptionSet(cfg.Symbols...)
	if *symbolsFlag != "" {
		symbols = model.NewSubscriptionSet(strings.Split(*symbolsFlag, ",")...)
	}

	var adapters []feed.Adapter
	if *sourcesFlag != "" {
		for _, name := range strings.Split(*sourcesFlag, ",") {
			a, err := feed.New(name, feed.Config{})
			if err != nil {
				logger.Error("bad source", "error", err)
				os.Exit(1)
			}
			adapters = append(adapters, a)
		}
	} else {
		for _, s := range cfg.Sources {
			if !s.IsEnabled() {
				continue
			}
			a, err := feed.New(s.Name, feed.Config{URL: s.URL, Quote: s.Quote})
			if err != nil {
				logger.Error("bad source", "error", err)
				os.Exit(1)
			}
			adapters = append(adapters, a)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	mem := store.NewMemory()
	bus := events.NewBus(logger)
	defer bus.Close()

	writer := sink.NewWriter(sink.DefaultConfig(), nil, mem, bus, logger)

	hcfg := hub.DefaultConfig()
	hcfg.Connection.ReconnectBaseWait = cfg.Connections.ReconnectBaseDelay
	hcfg.Connection.ReconnectMaxWait = cfg.Connections.ReconnectMaxDelay
	hcfg.Connection.MaxAttempts = cfg.Connections.MaxAttempts

	h := hub.New(hcfg, adapters, symbols, writer, bus, logger)
	h.SetLatestSources(nil, mem)

	sub := h.Subscribe(1000, events.KindTick, events.KindSinkError, events.KindConnectionExhausted)
	defer sub.Close()
	go printEvents(ctx, sub, *verbose)

	logger.Info("starting stream hub",
		"sources", len(adapters),
		"symbols", strings.Join(symbols.Symbols(), ","),
	)
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start stream hub", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				attrs := []any{
					"ticks_stored", mem.TickCount(),
					"events_dropped", sub.Dropped(),
				}
				for src, st := range h.States() {
					attrs = append(attrs, src, st.State.String())
				}
				logger.Info("stats", attrs...)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	if err := h.Stop(shutdownCtx); err != nil {
		logger.Warn("stream hub stop", "error", err)
	}

	for _, sym := range symbols.Symbols() {
		if tick, err := h.Latest(shutdownCtx, sym); err == nil {
			fmt.Printf("[LATEST] %s price=%.8g source=%s at=%s\n", sym, tick.Price, tick.Source, tick.Timestamp.Format(time.RFC3339))
		}
	}

	logger.Info("shutdown complete")
}

func printEvents(ctx context.Context, sub *events.Subscription, verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}

			if verbose {
				data, _ := json.MarshalIndent(ev.Tick, "", "  ")
				fmt.Printf("[%s] %s\n", strings.ToUpper(string(ev.Kind)), data)
				if ev.Err != nil {
					fmt.Printf("[%s] error=%v\n", strings.ToUpper(string(ev.Kind)), ev.Err)
				}
				continue
			}

			switch ev.Kind {
			case events.KindTick:
				t := ev.Tick
				fmt.Printf("[TICK] %s source=%s price=%.8g vol=%.4f change=%+.4f%%\n",
					t.Symbol, t.Source, t.Price, t.Volume, t.Change24h*100)
			case events.KindSinkError:
				fmt.Printf("[SINK ERROR] sink=%s symbol=%s error=%v\n", ev.Sink, ev.Symbol, ev.Err)
			case events.KindConnectionExhausted:
				var ex *connection.ExhaustedError
				attempts := 0
				if errors.As(ev.Err, &ex) {
					attempts = ex.Attempts
				}
				fmt.Printf("[EXHAUSTED] source=%s attempts=%d error=%v\n", ev.Source, attempts, ev.Err)
			}
		}
	}
}
