// Package ws implements the websocket transport surface (spec §6 Transport
// table): connection upgrade, per-connection read loop dispatched through
// wsrouter, and the Publisher fan-out the Room Coordinator addresses by
// connection-id only (spec §9 design note on the Room/broadcast link).
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// conn pairs a websocket connection with the write-side mutex gorilla
// requires: at most one goroutine may call a Conn's Write* methods at a
// time, but a connection here is written to both by its own read-loop
// goroutine (acks, errors), its ping ticker, and the Room Coordinator's
// heartbeat/snapshot ticker goroutine (broadcasts). wmu is the session's
// own mutex (passed in at Register) so all three writers serialize
// against each other.
type conn struct {
	ws  *websocket.Conn
	wmu *sync.Mutex
}

// Hub tracks every live connection by connId and implements room.Publisher.
// It never touches Room state directly — it only knows how to reach a
// connection, matching spec §9's "Publisher interface owned by the
// transport layer".
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]*conn),
		logger: logger,
	}
}

func (h *Hub) Register(connID string, ws *websocket.Conn, wmu *sync.Mutex) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[connID] = &conn{ws: ws, wmu: wmu}
}

func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

// Send implements room.Publisher.
func (h *Hub) Send(target string, v any) {
	h.mu.RLock()
	c, ok := h.conns[target]
	h.mu.RUnlock()
	if !ok {
		return
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		h.logger.Debug("ws: write failed", "conn_id", target, "error", err)
	}
}

// Broadcast implements room.Publisher. A write failure to one target never
// blocks or aborts delivery to the others (spec §9: the Room Coordinator
// must remain non-blocking on transport errors).
func (h *Hub) Broadcast(targets []string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("ws: marshal broadcast payload failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, target := range targets {
		c, ok := h.conns[target]
		if !ok {
			continue
		}

		c.wmu.Lock()
		writeErr := c.ws.WriteMessage(websocket.TextMessage, data)
		c.wmu.Unlock()

		if writeErr != nil {
			h.logger.Debug("ws: broadcast write failed", "conn_id", target, "error", writeErr)
		}
	}
}
