package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hookscope/hookscope/internal/hub"
	"github.com/hookscope/hookscope/internal/pipeline"
	"github.com/hookscope/hookscope/internal/store"
	"github.com/hookscope/hookscope/internal/usage"
)

// Handler carries the request handlers and their collaborators. All
// dependencies are injected; there are no package-level singletons, so
// tests run against isolated instances.
type Handler struct {
	Store    *store.EndpointStore
	Archive  *store.Archive // optional, nil when archiving is disabled
	Pipeline *pipeline.Pipeline
	Hub      *hub.Hub
	Meter    *usage.Meter
	BaseURL  string
	Logger   *slog.Logger
}

// NewHandler wires a handler set. archive may be nil.
func NewHandler(s *store.EndpointStore, archive *store.Archive, p *pipeline.Pipeline, h *hub.Hub, m *usage.Meter, baseURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:    s,
		Archive:  archive,
		Pipeline: p,
		Hub:      h,
		Meter:    m,
		BaseURL:  baseURL,
		Logger:   logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, map[string]string{"detail": detail})
}
