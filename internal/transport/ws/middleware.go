package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WShawnMing/WatchTogether/pkg/ctxlogger"
	"github.com/WShawnMing/WatchTogether/pkg/wsrouter"
)

// loggingMw mirrors sharetube-server's ws-middleware.controller.go
// loggerWSMw: stamp the dispatched message type into the logging context,
// log entry/exit and processing time.
func (s *Server) loggingMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
			msgType := wsrouter.MessageTypeFromCtx(ctx)
			sess := sessionFromCtx(ctx)

			connID := ""
			if sess != nil {
				connID = sess.connID
			}

			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", msgType))
			s.logger.DebugContext(ctx, "websocket message received", "conn_id", connID)

			if s.metrics != nil {
				s.metrics.IncWSMessage(msgType)
			}

			start := time.Now()
			err := next(ctx, conn, payload)

			s.logger.DebugContext(ctx, "websocket message handled",
				"conn_id", connID,
				"processing_time_us", time.Since(start).Microseconds(),
				"error", err,
			)

			return err
		}
	}
}
