package contextutil

import (
	"context"

	"github.com/rohitshetty84/multiagent/pkg/session"
)

type contextKey string

const sessionKey contextKey = "current_session"

// WithSession adds the running session to the context so tool handlers
// can read and mutate conversation state.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// GetSession retrieves the session from the context.
// Returns nil if not set.
func GetSession(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return sess
	}
	return nil
}
