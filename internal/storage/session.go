package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SessionRecord is the persisted login state.
type SessionRecord struct {
	ServerURL string
	Token     string
	Username  string
	Role      string
	ProjectID int64
	UpdatedAt time.Time
}

// SessionStorage persists the single active session.
type SessionStorage struct {
	db *DB
}

// NewSessionStorage creates a new session storage handler.
func NewSessionStorage(db *DB) *SessionStorage {
	return &SessionStorage{db: db}
}

// Load returns the stored session, or nil if none was saved.
func (s *SessionStorage) Load() (*SessionRecord, error) {
	var rec SessionRecord
	var updated sql.NullTime
	err := s.db.WithRLock(func() error {
		return s.db.QueryRow(
			`SELECT server_url, token, username, role, project_id, updated_at
			 FROM session WHERE id = 1`).Scan(
			&rec.ServerURL, &rec.Token, &rec.Username, &rec.Role, &rec.ProjectID, &updated)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	rec.UpdatedAt = updated.Time
	return &rec, nil
}

// Save replaces the stored session.
func (s *SessionStorage) Save(rec *SessionRecord) error {
	rec.UpdatedAt = time.Now()
	return s.db.WithLock(func() error {
		_, err := s.db.Exec(
			`INSERT INTO session (id, server_url, token, username, role, project_id, updated_at)
			 VALUES (1, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				server_url = excluded.server_url,
				token = excluded.token,
				username = excluded.username,
				role = excluded.role,
				project_id = excluded.project_id,
				updated_at = excluded.updated_at`,
			rec.ServerURL, rec.Token, rec.Username, rec.Role, rec.ProjectID, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

// Clear removes the stored session.
func (s *SessionStorage) Clear() error {
	return s.db.WithLock(func() error {
		if _, err := s.db.Exec("DELETE FROM session"); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		return nil
	})
}
