package wsrouter

import "context"

type ctxKey string

const messageTypeKey ctxKey = "message_type"

func withMessageType(ctx context.Context, messageType string) context.Context {
	return context.WithValue(ctx, messageTypeKey, messageType)
}

// MessageTypeFromCtx returns the command type currently being dispatched,
// or "" if called outside a Dispatch call.
func MessageTypeFromCtx(ctx context.Context) string {
	t, _ := ctx.Value(messageTypeKey).(string)
	return t
}
