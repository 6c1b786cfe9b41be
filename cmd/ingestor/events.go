package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/market-ingest/internal/connection"
	"github.com/rickgao/market-ingest/internal/events"
	"github.com/rickgao/market-ingest/internal/model"
)

type systemEventLogger interface {
	LogSystemEvent(ctx context.Context, ev model.SystemEvent) error
}

// recordExhausted persists every connectionExhausted event until sub closes.
func recordExhausted(sub *events.Subscription, st systemEventLogger, logger *slog.Logger) {
	for ev := range sub.C {
		data := map[string]any{"source": ev.Source.String()}
		var ex *connection.ExhaustedError
		if errors.As(ev.Err, &ex) {
			data["attempts"] = ex.Attempts
			if ex.LastError != nil {
				data["last_error"] = ex.LastError.Error()
			}
		}

		logger.Error("source gave up reconnecting", "source", ev.Source, "error", ev.Err)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := st.LogSystemEvent(ctx, model.SystemEvent{
			Level:     "error",
			Component: "hub",
			Message:   "connection exhausted",
			Data:      data,
			CreatedAt: ev.Time.UTC(),
		})
		cancel()
		if err != nil {
			logger.Warn("failed to record system event", "error", err)
		}
	}
}
