package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hookscope/hookscope/internal/hub"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsObserver adapts a websocket connection to the hub's Observer
// interface. Writes are serialized and bounded by a deadline so one
// stuck peer cannot stall a publish indefinitely.
type wsObserver struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (o *wsObserver) Notify(event hub.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteJSON(event)
}

// WebSocket upgrades the connection and streams new_request events for
// one endpoint until the peer disconnects. No history is replayed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	if endpointID == "" {
		h.writeError(w, http.StatusBadRequest, "missing endpoint ID")
		return
	}

	if _, ok := h.Store.Get(endpointID); !ok {
		h.writeError(w, http.StatusNotFound, "Endpoint not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	obs := &wsObserver{conn: conn}
	h.Hub.Subscribe(endpointID, obs)

	defer func() {
		h.Hub.Unsubscribe(endpointID, obs)
		conn.Close()
	}()

	// Read loop only detects disconnects; clients do not send data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Debug("websocket closed", slog.String("error", err.Error()))
			}
			return
		}
	}
}
