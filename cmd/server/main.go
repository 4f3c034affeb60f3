package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/hookscope/hookscope/internal/ai"
	"github.com/hookscope/hookscope/internal/ai/anthropic"
	"github.com/hookscope/hookscope/internal/config"
	"github.com/hookscope/hookscope/internal/handler"
	"github.com/hookscope/hookscope/internal/hub"
	"github.com/hookscope/hookscope/internal/pipeline"
	"github.com/hookscope/hookscope/internal/ratelimit"
	"github.com/hookscope/hookscope/internal/store"
	"github.com/hookscope/hookscope/internal/usage"
)

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load("config.yaml")
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	endpoints := store.NewEndpointStore(cfg.History.MaxRequests)
	notifications := hub.New(logger)
	meter := usage.NewMeter(logger, cfg.Usage.CostPerToken, cfg.Usage.DailyWarnThreshold)

	var archive *store.Archive
	if cfg.Archive.Enabled {
		archive, err = store.OpenArchive(cfg.Archive.Path)
		if err != nil {
			logger.Error("failed to open archive", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer archive.Close()
	}

	var client *anthropic.Client
	aiEnabled := cfg.AI.Enabled && cfg.AI.APIKey != ""
	if aiEnabled {
		client = anthropic.NewClient(cfg.AI.APIKey)
		logger.Info("AI mock responses enabled", slog.String("model", cfg.AI.Model))
	} else {
		logger.Info("AI mock responses disabled")
	}

	responder := ai.NewResponder(client, ratelimit.New(), ratelimit.New(), meter, logger, ai.Options{
		Enabled:                 aiEnabled,
		Model:                   cfg.AI.Model,
		MaxTokens:               cfg.AI.MaxTokens,
		Timeout:                 cfg.AI.Timeout,
		CallsPerEndpointPerHour: cfg.AI.CallsPerEndpointPerHour,
		CallsPerIPPerHour:       cfg.AI.CallsPerIPPerHour,
	})

	pipe := pipeline.New(endpoints, archive, responder, notifications, logger)
	h := handler.NewHandler(endpoints, archive, pipe, notifications, meter, cfg.Server.BaseURL, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handler.RequestLogger(logger))

	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	r.Post("/endpoints", h.CreateEndpoint)
	r.Get("/endpoints/{endpointID}", h.GetEndpoint)
	r.Get("/endpoints/{endpointID}/requests", h.ListRequests)
	r.Get("/requests/{requestID}", h.GetRequest)

	r.Get("/ws/{endpointID}", h.WebSocket)
	r.Get("/sse/{endpointID}", h.SSE)

	// Webhook receiver accepts every method.
	r.HandleFunc("/w/{endpointID}", h.CaptureWebhook)

	if cfg.Retention.Enabled {
		go retentionSweep(endpoints, archive, cfg.Retention, logger)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("starting server", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// retentionSweep periodically expires endpoints past their TTL, in
// memory and, when archiving is on, in the archive.
func retentionSweep(endpoints *store.EndpointStore, archive *store.Archive, cfg config.RetentionConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-cfg.TTL)
		if removed := endpoints.ExpireBefore(cutoff); removed > 0 {
			logger.Info("expired endpoints", slog.Int("count", removed))
		}
		if archive != nil {
			if err := archive.Cleanup(context.Background(), cutoff); err != nil {
				logger.Error("archive cleanup failed", slog.String("error", err.Error()))
			}
		}
	}
}
