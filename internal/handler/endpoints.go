package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hookscope/hookscope/internal/store"
)

type createEndpointRequest struct {
	Name string `json:"name"`
}

type endpointResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) toEndpointResponse(ep *store.Endpoint) endpointResponse {
	return endpointResponse{
		ID:        ep.ID,
		URL:       h.BaseURL + "/w/" + ep.ID,
		Name:      ep.Name,
		CreatedAt: ep.CreatedAt,
	}
}

// CreateEndpoint allocates a fresh webhook endpoint. The request body
// is optional; an empty or absent body creates an unnamed endpoint.
func (h *Handler) CreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req createEndpointRequest
	if r.Body != nil {
		// Malformed or empty bodies just mean no name.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ep, err := h.Store.Create(req.Name)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to create endpoint")
		return
	}

	if h.Archive != nil {
		// Advisory: creation succeeds even when the archive write fails.
		if err := h.Archive.SaveEndpoint(r.Context(), ep); err != nil {
			h.Logger.Error("failed to archive endpoint",
				slog.String("endpoint_id", ep.ID),
				slog.String("error", err.Error()))
		}
	}

	h.writeJSON(w, http.StatusCreated, h.toEndpointResponse(ep))
}

// GetEndpoint returns endpoint details, 404 when unknown.
func (h *Handler) GetEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	ep, ok := h.Store.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	h.writeJSON(w, http.StatusOK, h.toEndpointResponse(ep))
}

// ListRequests returns the endpoint's bounded request history together
// with the all-time request count.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "endpointID")
	ep, ok := h.Store.Get(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"endpoint_id":   ep.ID,
		"request_count": ep.RequestCount,
		"requests":      ep.Requests,
	})
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "hookscope",
	})
}

// Stats exposes the advisory usage meter.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.Meter.Snapshot())
}
