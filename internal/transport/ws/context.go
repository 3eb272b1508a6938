package ws

import "context"

type contextKey int

const sessionCtxKey contextKey = iota

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

func sessionFromCtx(ctx context.Context) *session {
	s, _ := ctx.Value(sessionCtxKey).(*session)
	return s
}
