package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hookscope/hookscope/internal/store"
)

// CaptureWebhook receives one inbound call for an endpoint, any HTTP
// method. The sender always gets a 200 receipt once the endpoint
// exists; only an unknown id yields a non-2xx response.
func (h *Handler) CaptureWebhook(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	if endpointID == "" {
		h.writeError(w, http.StatusBadRequest, "missing endpoint ID")
		return
	}

	receipt, err := h.Pipeline.Ingest(r.Context(), endpointID, r)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		h.Logger.Error("ingest failed",
			slog.String("endpoint_id", endpointID),
			slog.String("error", err.Error()),
		)
		h.writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	h.writeJSON(w, http.StatusOK, receipt)
}
