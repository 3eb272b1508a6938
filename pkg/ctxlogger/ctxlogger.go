// Package ctxlogger lets handlers stash slog attributes on a context and
// have them appear on every subsequent log line without threading a logger
// value through every call site.
package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// ContextHandler wraps a slog.Handler and merges attributes appended via
// AppendCtx into every record it handles.
type ContextHandler struct {
	slog.Handler
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

// AppendCtx returns a context carrying attr in addition to any already
// attached by a previous AppendCtx call.
func AppendCtx(ctx context.Context, attr slog.Attr) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)

	attrs := make([]slog.Attr, len(existing), len(existing)+1)
	copy(attrs, existing)
	attrs = append(attrs, attr)

	return context.WithValue(ctx, ctxKey{}, attrs)
}
