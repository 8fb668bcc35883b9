// Package session holds the operator's login and active project for the
// lifetime of the process.
package session

import (
	"context"
	"sync"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/storage"
	"github.com/user/sawlah/internal/util"
)

// DefaultHint is shown on the login form.
const DefaultHint = "default: admin / sawlah"

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.AuthResult, error)
	Register(ctx context.Context, username, password string) (*model.AuthResult, error)
}

// Verifier resolves the user behind the current token.
type Verifier interface {
	Me(ctx context.Context) (*model.User, error)
}

// Session is the authenticated state shared by the CLI and the TUI. It
// satisfies api.TokenSource.
type Session struct {
	mu    sync.RWMutex
	store *storage.SessionStorage
	rec   storage.SessionRecord
}

var _ api.TokenSource = (*Session)(nil)

// Load restores the session saved for serverURL. A token saved for a
// different server is discarded. store may be nil for an in-memory session.
func Load(store *storage.SessionStorage, serverURL string) (*Session, error) {
	s := &Session{store: store, rec: storage.SessionRecord{ServerURL: serverURL}}
	if store == nil {
		return s, nil
	}

	rec, err := store.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return s, nil
	}
	if rec.ServerURL != serverURL {
		util.Debug("session: stored token belongs to %s, ignoring", rec.ServerURL)
		return s, nil
	}
	s.rec = *rec
	return s, nil
}

// Token returns the bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Token
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// User returns the logged-in operator.
func (s *Session) User() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.User{Username: s.rec.Username, Role: s.rec.Role}
}

// ProjectID returns the active project, zero when none is selected.
func (s *Session) ProjectID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ProjectID
}

// SetProject selects the active project. Zero clears it.
func (s *Session) SetProject(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.ProjectID = id
	return s.persistLocked()
}

// Login authenticates and stores the token.
func (s *Session) Login(ctx context.Context, auth Authenticator, username, password string) error {
	res, err := auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.adopt(res)
}

// Register creates an account and logs into it.
func (s *Session) Register(ctx context.Context, auth Authenticator, username, password string) error {
	res, err := auth.Register(ctx, username, password)
	if err != nil {
		return err
	}
	return s.adopt(res)
}

func (s *Session) adopt(res *model.AuthResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Token = res.Token
	s.rec.Username = res.Username
	s.rec.Role = res.Role
	util.Info("session: logged in as %s", res.Username)
	return s.persistLocked()
}

// Logout forgets the token and the active project.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = storage.SessionRecord{ServerURL: s.rec.ServerURL}
	if s.store == nil {
		return nil
	}
	return s.store.Clear()
}

// Verify checks the token against the backend and logs out if it was
// rejected. Transport failures leave the session untouched.
func (s *Session) Verify(ctx context.Context, v Verifier) (bool, error) {
	if !s.Authenticated() {
		return false, nil
	}
	u, err := v.Me(ctx)
	if err != nil {
		if api.IsAuth(err) {
			util.Warn("session: token rejected, logging out")
			return false, s.Logout()
		}
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Username = u.Username
	s.rec.Role = u.Role
	return true, s.persistLocked()
}

func (s *Session) persistLocked() error {
	if s.store == nil {
		return nil
	}
	rec := s.rec
	return s.store.Save(&rec)
}
