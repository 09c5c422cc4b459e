package server

import (
	"context"

	"github.com/rohitshetty84/multiagent/pkg/api"
	"github.com/rohitshetty84/multiagent/pkg/chat"
	"github.com/rohitshetty84/multiagent/pkg/session"
)

// SessionManager owns session lifecycle on behalf of the handlers.
type SessionManager struct {
	sessionStore session.Store
}

func NewSessionManager(store session.Store) *SessionManager {
	return &SessionManager{sessionStore: store}
}

func (sm *SessionManager) CreateSession(ctx context.Context, req *api.CreateSessionRequest) (*session.Session, error) {
	opts := []session.Opt{}
	if req.Title != "" {
		opts = append(opts, session.WithTitle(req.Title))
	}
	if req.MaxIterations > 0 {
		opts = append(opts, session.WithMaxIterations(req.MaxIterations))
	}

	sess := session.New(opts...)
	if err := sm.sessionStore.AddSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (sm *SessionManager) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return sm.sessionStore.GetSession(ctx, id)
}

func (sm *SessionManager) ListSessions(ctx context.Context) ([]*session.Session, error) {
	return sm.sessionStore.GetSessions(ctx)
}

func (sm *SessionManager) DeleteSession(ctx context.Context, id string) error {
	return sm.sessionStore.DeleteSession(ctx, id)
}

func (sm *SessionManager) SaveSession(ctx context.Context, sess *session.Session) error {
	return sm.sessionStore.UpdateSession(ctx, sess)
}

// EnsureTitle derives a title from the first user message when none has
// been set yet.
func (sm *SessionManager) EnsureTitle(sess *session.Session) {
	if sess.Title != "" {
		return
	}
	for _, msg := range sess.AllMessages() {
		if msg.Role != chat.MessageRoleUser {
			continue
		}
		sess.Title = session.TitleFromContent(msg.Content)
		return
	}
}
