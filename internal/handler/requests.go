package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hookscope/hookscope/internal/store"
)

// GetRequest looks up a single archived request by id. The per-endpoint
// in-memory history is bounded, so this is the only way to retrieve a
// request after it has been evicted. 404 when archiving is disabled.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		h.writeError(w, http.StatusNotFound, "Request not found")
		return
	}

	id := chi.URLParam(r, "requestID")
	req, endpointID, err := h.Archive.GetRequest(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Request not found")
		return
	}
	if err != nil {
		h.Logger.Error("failed to read archived request",
			slog.String("request_id", id),
			slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, "failed to read request")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoint_id": endpointID,
		"request":     req,
	})
}
