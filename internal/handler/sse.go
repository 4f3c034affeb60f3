package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hookscope/hookscope/internal/hub"
)

const sseBufferSize = 10

// sseObserver bridges hub events into a buffered channel drained by
// the SSE write loop. A full buffer counts as a delivery failure so a
// stalled consumer gets dropped instead of blocking publishes.
type sseObserver struct {
	ch chan hub.Event
}

func (o *sseObserver) Notify(event hub.Event) error {
	select {
	case o.ch <- event:
		return nil
	default:
		return errors.New("sse buffer full")
	}
}

// SSE streams new_request events for one endpoint over
// text/event-stream, with periodic keepalive comments.
func (h *Handler) SSE(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	if endpointID == "" {
		h.writeError(w, http.StatusBadRequest, "missing endpoint ID")
		return
	}

	if _, ok := h.Store.Get(endpointID); !ok {
		h.writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	obs := &sseObserver{ch: make(chan hub.Event, sseBufferSize)}
	h.Hub.Subscribe(endpointID, obs)
	defer h.Hub.Unsubscribe(endpointID, obs)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-obs.ch:
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: new_request\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			// Heartbeat keeps intermediaries from closing the stream.
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
