package shared

import (
	"context"
	"net/http"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// RequestSession returns the session loaded by the session middleware, or nil
// for routes served outside it.
func RequestSession(r *http.Request) *Session {
	if r == nil {
		return nil
	}
	return SessionFromContext(r.Context())
}
