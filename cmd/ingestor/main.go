// ingestor streams live ticks from the configured sources into Redis and
// PostgreSQL, runs the historical backfill, and serves /health and /metrics.
//
// Usage: go run ./cmd/ingestor --config configs/ingestor.example.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/market-ingest/internal/backfill"
	"github.com/rickgao/market-ingest/internal/config"
	"github.com/rickgao/market-ingest/internal/connection"
	"github.com/rickgao/market-ingest/internal/database"
	"github.com/rickgao/market-ingest/internal/events"
	"github.com/rickgao/market-ingest/internal/hub"
	"github.com/rickgao/market-ingest/internal/metrics"
	"github.com/rickgao/market-ingest/internal/model"
	"github.com/rickgao/market-ingest/internal/sink"
	"github.com/rickgao/market-ingest/internal/store"
	"github.com/rickgao/market-ingest/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestor.example.yaml", "path to config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log, os.Stdout).With("instance", cfg.Instance.ID)
	logger.Info("starting ingestor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Storage
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pg := store.NewPostgres(pool, logger)
	if err := pg.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	redisCache, err := newCache(cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to configure redis", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		// The writer keeps storing ticks while the cache is away
		logger.Warn("redis unreachable at startup", "error", err)
	}

	// Streaming
	bus := events.NewBus(logger)
	defer bus.Close()

	exhausted := bus.Subscribe(cfg.Events.BufferSize, events.KindConnectionExhausted)
	go recordExhausted(exhausted, pg, logger)

	writer := sink.NewWriter(sinkConfig(cfg.Sink), redisCache, pg, bus, logger)

	adapters, err := buildAdapters(cfg.Sources)
	if err != nil {
		logger.Error("failed to build source adapters", "error", err)
		os.Exit(1)
	}

	symbols := model.NewSubscriptionSet(cfg.Symbols...)
	hcfg := hubConfig(cfg)
	hcfg.Dialer = connection.WebSocketDialer(hcfg.Connection.Transport, logger)

	h := hub.New(hcfg, adapters, symbols, writer, bus, logger)
	h.SetLatestSources(redisCache, pg)

	// HTTP
	mux := metrics.NewMux(cfg.Metrics.Path)
	mux.Handle("/health", healthHandler(cfg.Instance.ID, pg, redisCache, h.Status))
	addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
	srv := metrics.Serve(addr, mux, logger)
	logger.Info("http server listening", "addr", addr, "metrics_path", cfg.Metrics.Path)

	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start stream hub", "error", err)
		os.Exit(1)
	}

	var job *backfill.Job
	if cfg.Backfill.Enabled {
		client := backfill.NewClient(cfg.Backfill.RestURL,
			backfill.WithLogger(logger),
			backfill.WithTimeout(cfg.Backfill.Timeout),
			backfill.WithRetries(cfg.Backfill.MaxRetries, time.Second),
		)
		job = backfill.New(backfillConfig(cfg.Backfill), client, redisCache, pg, symbols, logger)
		if err := job.Start(ctx); err != nil {
			logger.Error("failed to start backfill", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("ingestor running",
		"sources", len(adapters),
		"symbols", symbols.Len(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if job != nil {
		if err := job.Stop(shutdownCtx); err != nil {
			logger.Warn("backfill stop", "error", err)
		}
	}
	if err := h.Stop(shutdownCtx); err != nil {
		logger.Warn("stream hub stop", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", "error", err)
	}

	logger.Info("ingestor stopped")
}
