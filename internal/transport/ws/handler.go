package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	readDeadline  = 60 * time.Second
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = (pongWait * 9) / 10
)

// ServeHTTP upgrades the request to a websocket connection and runs its
// read loop until the client disconnects, dispatching every frame through
// the command router (spec §6 transport). Unlike sharetube-server's
// per-room upgrade routes, this single generic endpoint assigns a fresh
// connId and only learns which room the connection belongs to once a
// room:join frame arrives.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "ws: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := &session{
		connID:  uuid.NewString(),
		conn:    conn,
		writeMu: &sync.Mutex{},
		logger:  s.logger,
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stopPing := make(chan struct{})
	go s.pingLoop(conn, sess.writeMu, stopPing)
	defer close(stopPing)

	ctx := withSession(r.Context(), sess)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		if err := s.router.Dispatch(ctx, conn, raw); err != nil {
			s.logger.DebugContext(ctx, "ws: dispatch error", "error", err, "conn_id", sess.connID)
		}
	}

	s.disconnect(sess)
}

func (s *Server) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// disconnect runs the equivalent of a room:leave when the socket drops
// without an explicit leave frame (spec §4.1 disconnect path; spec §7
// "transport" error kind: "the transport layer handles reconnection").
func (s *Server) disconnect(sess *session) {
	s.hub.Unregister(sess.connID)

	if sess.room == nil {
		return
	}

	res := sess.room.Disconnect(sess.connID)
	if res.RoomEmpty && s.discovery != nil {
		s.discovery.Disarm(sess.roomID)
	}
}
