package hub

import (
	"log/slog"
	"sync"
)

// Event is one live-notification message. Data is the fully
// materialized captured request, already JSON-serializable.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Observer receives events for one endpoint. Notify must be safe for
// concurrent use; an error return drops the observer from the hub.
type Observer interface {
	Notify(Event) error
}

// Hub fans out newly captured requests to live observers, keyed by
// endpoint id. Delivery is best-effort: no replay, no retry, and a
// failing observer is removed so it cannot poison later publishes.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]map[Observer]struct{}
	logger    *slog.Logger
}

// New creates an empty hub.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		observers: make(map[string]map[Observer]struct{}),
		logger:    logger,
	}
}

// Subscribe registers obs for events on endpointID.
func (h *Hub) Subscribe(endpointID string, obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.observers[endpointID]
	if !ok {
		set = make(map[Observer]struct{})
		h.observers[endpointID] = set
	}
	set[obs] = struct{}{}
}

// Unsubscribe removes obs. The endpoint's entry is dropped entirely
// when its last observer leaves.
func (h *Hub) Unsubscribe(endpointID string, obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.observers[endpointID]
	if !ok {
		return
	}
	delete(set, obs)
	if len(set) == 0 {
		delete(h.observers, endpointID)
	}
}

// Publish delivers event to every observer currently registered for
// endpointID. The observer set is snapshotted first so delivery and
// cleanup never mutate a map mid-iteration. Observers whose Notify
// fails are unsubscribed after the attempt.
func (h *Hub) Publish(endpointID string, event Event) {
	h.mu.RLock()
	set := h.observers[endpointID]
	snapshot := make([]Observer, 0, len(set))
	for obs := range set {
		snapshot = append(snapshot, obs)
	}
	h.mu.RUnlock()

	for _, obs := range snapshot {
		if err := obs.Notify(event); err != nil {
			h.logger.Debug("observer delivery failed, removing",
				slog.String("endpoint_id", endpointID),
				slog.String("error", err.Error()),
			)
			h.Unsubscribe(endpointID, obs)
		}
	}
}

// Subscribers reports how many observers endpointID currently has.
func (h *Hub) Subscribers(endpointID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[endpointID])
}
