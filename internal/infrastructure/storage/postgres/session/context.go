package session

import (
	"context"
)

type sessionKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// MustFromContext returns the session stored in ctx.
// Panics if there is none: the session middleware is missing.
func MustFromContext(ctx context.Context) *Session {
	s := FromContext(ctx)
	if s == nil {
		panic("session: no session in context")
	}
	return s
}
