package ws

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/WShawnMing/WatchTogether/internal/room"
)

// session holds the per-connection mutable state that spans multiple
// dispatched frames. Every field except writeMu is only ever touched from
// that connection's single read-loop goroutine, mirroring the Room
// Coordinator's single-goroutine discipline (spec §5) at the transport
// edge. writeMu serializes the connection's Write* calls across the
// read-loop (acks, errors), the ping ticker, and the Room Coordinator's
// own heartbeat/snapshot goroutine, all of which may write concurrently.
type session struct {
	connID  string
	conn    *websocket.Conn
	writeMu *sync.Mutex
	logger  *slog.Logger

	room   *room.Room
	roomID string
}
