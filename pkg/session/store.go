package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrEmptyID  = errors.New("session ID cannot be empty")
	ErrNotFound = errors.New("session not found")
)

// Store persists sessions across restarts.
type Store interface {
	AddSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	GetSessions(ctx context.Context) ([]*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
	Close() error
}

// SQLiteSessionStore implements Store using SQLite.
type SQLiteSessionStore struct {
	db *sql.DB
}

// NewSQLiteSessionStore opens (and creates if needed) the session
// database at path.
func NewSQLiteSessionStore(path string) (Store, error) {
	// _busy_timeout: wait up to 5 seconds if the database is locked.
	// _journal_mode=WAL: write-ahead logging for concurrent readers.
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer. A single connection serializes writes
	// and avoids "database is locked" errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			current_agent TEXT NOT NULL DEFAULT '',
			messages TEXT NOT NULL DEFAULT '[]',
			profile TEXT NOT NULL DEFAULT '{}',
			threads TEXT NOT NULL DEFAULT '{}',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			max_iterations INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}

	return &SQLiteSessionStore{db: db}, nil
}

func (s *SQLiteSessionStore) AddSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return ErrEmptyID
	}

	messagesJSON, profileJSON, threadsJSON, err := marshalSession(session)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, current_agent, messages, profile, threads, input_tokens, output_tokens, cost, max_iterations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Title, session.CurrentAgent, messagesJSON, profileJSON, threadsJSON,
		session.InputTokens, session.OutputTokens, session.Cost, session.MaxIterations,
		session.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteSessionStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptyID
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, current_agent, messages, profile, threads, input_tokens, output_tokens, cost, max_iterations, created_at
		 FROM sessions WHERE id = ?`, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

func (s *SQLiteSessionStore) GetSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, current_agent, messages, profile, threads, input_tokens, output_tokens, cost, max_iterations, created_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *SQLiteSessionStore) UpdateSession(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return ErrEmptyID
	}

	messagesJSON, profileJSON, threadsJSON, err := marshalSession(session)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, current_agent = ?, messages = ?, profile = ?, threads = ?, input_tokens = ?, output_tokens = ?, cost = ?, max_iterations = ?
		 WHERE id = ?`,
		session.Title, session.CurrentAgent, messagesJSON, profileJSON, threadsJSON,
		session.InputTokens, session.OutputTokens, session.Cost, session.MaxIterations, session.ID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteSessionStore) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}

func marshalSession(session *Session) (messages, profile, threads string, err error) {
	messagesJSON, err := json.Marshal(session.Messages)
	if err != nil {
		return "", "", "", err
	}
	profileJSON, err := json.Marshal(session.Profile)
	if err != nil {
		return "", "", "", err
	}
	threadsJSON, err := json.Marshal(session.Threads)
	if err != nil {
		return "", "", "", err
	}
	return string(messagesJSON), string(profileJSON), string(threadsJSON), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session                                Session
		messagesJSON, profileJSON, threadsJSON string
		createdAtStr                           string
	)

	err := row.Scan(&session.ID, &session.Title, &session.CurrentAgent,
		&messagesJSON, &profileJSON, &threadsJSON,
		&session.InputTokens, &session.OutputTokens, &session.Cost,
		&session.MaxIterations, &createdAtStr)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("parsing session messages: %w", err)
	}
	if err := json.Unmarshal([]byte(profileJSON), &session.Profile); err != nil {
		return nil, fmt.Errorf("parsing session profile: %w", err)
	}
	if err := json.Unmarshal([]byte(threadsJSON), &session.Threads); err != nil {
		return nil, fmt.Errorf("parsing session threads: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing session timestamp: %w", err)
	}

	return &session, nil
}

// InMemorySessionStore keeps sessions in a map, for tests and for
// running without persistence.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]*Session)}
}

func (s *InMemorySessionStore) AddSession(_ context.Context, session *Session) error {
	if session.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemorySessionStore) GetSession(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) GetSessions(context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (s *InMemorySessionStore) UpdateSession(_ context.Context, session *Session) error {
	if session.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemorySessionStore) DeleteSession(_ context.Context, id string) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemorySessionStore) Close() error { return nil }
