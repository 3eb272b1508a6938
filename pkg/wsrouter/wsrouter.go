// Package wsrouter dispatches typed JSON command frames read off a single
// websocket connection to registered handlers, the way sharetube-server's
// pkg/wsrouter does, generalized with a middleware chain (adapted from its
// ws-middleware.controller.go) so callers can hang logging/recovery/auth
// around every command without threading them into each handler.
package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// HandlerFunc processes one decoded command frame.
type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

// Middleware wraps a HandlerFunc to add cross-cutting behavior.
type Middleware func(HandlerFunc) HandlerFunc

type Router struct {
	routes     map[string]HandlerFunc
	middleware []Middleware
}

func New() *Router {
	return &Router{routes: make(map[string]HandlerFunc)}
}

// Use appends middleware applied, in order, around every handler
// registered after this call.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

func (r *Router) Handle(messageType string, handler HandlerFunc) {
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}
	r.routes[messageType] = handler
}

// ErrUnknownType is surfaced to the handler's caller when a frame's type
// has no registered route; the caller decides how to report it.
type ErrUnknownType struct{ Type string }

func (e ErrUnknownType) Error() string { return fmt.Sprintf("unknown message type %q", e.Type) }

// Dispatch decodes one frame and runs its handler. It does not own the
// connection's read loop so callers can combine it with per-connection
// read deadlines, close handling, etc.
func (r *Router) Dispatch(ctx context.Context, conn *websocket.Conn, raw []byte) error {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	handler, ok := r.routes[f.Type]
	if !ok {
		return ErrUnknownType{Type: f.Type}
	}

	ctx = withMessageType(ctx, f.Type)
	return handler(ctx, conn, f.Payload)
}
