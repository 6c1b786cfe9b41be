package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rickgao/market-ingest/internal/version"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status     string          `json:"status"`
	Instance   string          `json:"instance"`
	Version    version.Info    `json:"version"`
	Components map[string]any  `json:"components"`
	Streams    map[string]bool `json:"streams"`
}

// healthHandler reports database, cache and per-source stream status.
// Unreachable storage is unhealthy; a source that is not streaming is
// degraded.
func healthHandler(instance string, db, cache pinger, streams func() map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := healthResponse{
			Status:     "healthy",
			Instance:   instance,
			Version:    version.Get(),
			Components: make(map[string]any),
			Streams:    streams(),
		}

		check := func(name string, p pinger) {
			if p == nil {
				return
			}
			if err := p.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components[name] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
				return
			}
			health.Components[name] = "connected"
		}
		check("database", db)
		check("cache", cache)

		if health.Status == "healthy" {
			for _, ok := range health.Streams {
				if !ok {
					health.Status = "degraded"
					break
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
