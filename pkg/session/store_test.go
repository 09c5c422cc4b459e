package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohitshetty84/multiagent/pkg/chat"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	store, err := NewSQLiteSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	s := New(WithTitle("Password reset"))
	s.AddMessage(UserMessage("How do I reset my password?"))
	s.AddMessage(AgentMessage("faq", chat.Message{
		Role:    chat.MessageRoleAssistant,
		Content: "Use the reset link on the login page.",
	}))
	s.SetCurrentAgent("faq")
	s.SetThread("faq", "thread_abc")
	s.MarkThreadUsed("faq")
	s.Profile.UserID = "ID-123"
	s.AddUsage(&chat.Usage{InputTokens: 12, OutputTokens: 34})

	require.NoError(t, store.AddSession(t.Context(), s))

	got, err := store.GetSession(t.Context(), s.ID)
	require.NoError(t, err)

	assert.Equal(t, "Password reset", got.Title)
	assert.Equal(t, "faq", got.CurrentAgent)
	assert.Equal(t, "ID-123", got.Profile.UserID)
	assert.Equal(t, 12, got.InputTokens)
	assert.Equal(t, 34, got.OutputTokens)
	assert.Equal(t, DefaultMaxIterations, got.MaxIterations)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "How do I reset my password?", got.Messages[0].Message.Content)
	assert.Equal(t, "faq", got.Messages[1].Message.AgentName)

	thread := got.Thread("faq")
	require.NotNil(t, thread)
	assert.Equal(t, "thread_abc", thread.ID)
	assert.True(t, thread.Used)
}

func TestSQLiteStore_Update(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	s := New()
	require.NoError(t, store.AddSession(t.Context(), s))

	s.Title = "Account update"
	s.ClearThread("faq")
	require.NoError(t, store.UpdateSession(t.Context(), s))

	got, err := store.GetSession(t.Context(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Account update", got.Title)
}

func TestSQLiteStore_Errors(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetSession(t.Context(), "")
	assert.ErrorIs(t, err, ErrEmptyID)

	_, err = store.GetSession(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.UpdateSession(t.Context(), New(WithID("missing")))
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.DeleteSession(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Delete(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	s := New()
	require.NoError(t, store.AddSession(t.Context(), s))
	require.NoError(t, store.DeleteSession(t.Context(), s.ID))

	_, err := store.GetSession(t.Context(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore(t *testing.T) {
	t.Parallel()
	store := NewInMemorySessionStore()

	s := New()
	require.NoError(t, store.AddSession(t.Context(), s))

	got, err := store.GetSession(t.Context(), s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	sessions, err := store.GetSessions(t.Context())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, store.DeleteSession(t.Context(), s.ID))
	_, err = store.GetSession(t.Context(), s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
