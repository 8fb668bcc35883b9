package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/storage"
)

type fakeAuth struct {
	err  error
	user *model.User
}

func (f *fakeAuth) Login(_ context.Context, username, _ string) (*model.AuthResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.AuthResult{Token: "tok-" + username, Username: username, Role: "admin"}, nil
}

func (f *fakeAuth) Register(ctx context.Context, username, password string) (*model.AuthResult, error) {
	return f.Login(ctx, username, password)
}

func (f *fakeAuth) Me(context.Context) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func newStore(t *testing.T) *storage.SessionStorage {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewSessionStorage(db)
}

func TestLoginPersists(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	s, err := Load(store, "http://a")
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	require.NoError(t, s.Login(ctx, &fakeAuth{}, "admin", "sawlah"))
	require.NoError(t, s.SetProject(4))

	again, err := Load(store, "http://a")
	require.NoError(t, err)
	assert.Equal(t, "tok-admin", again.Token())
	assert.Equal(t, "admin", again.User().Username)
	assert.Equal(t, int64(4), again.ProjectID())

	other, err := Load(store, "http://b")
	require.NoError(t, err)
	assert.False(t, other.Authenticated())

	require.NoError(t, again.Logout())
	gone, err := Load(store, "http://a")
	require.NoError(t, err)
	assert.False(t, gone.Authenticated())
	assert.Zero(t, gone.ProjectID())
}

func TestLoginFailureKeepsLoggedOut(t *testing.T) {
	s, err := Load(nil, "http://a")
	require.NoError(t, err)

	auth := &fakeAuth{err: &api.APIError{Kind: api.KindAuth, Status: 401, Message: "Invalid credentials"}}
	err = s.Login(context.Background(), auth, "admin", "wrong")
	assert.True(t, api.IsAuth(err))
	assert.False(t, s.Authenticated())
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	s, err := Load(nil, "http://a")
	require.NoError(t, err)
	require.NoError(t, s.Login(ctx, &fakeAuth{}, "admin", "sawlah"))

	ok, err := s.Verify(ctx, &fakeAuth{user: &model.User{Username: "admin", Role: "lead"}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "lead", s.User().Role)

	ok, err = s.Verify(ctx, &fakeAuth{err: &api.APIError{Kind: api.KindSubmission, Status: 500}})
	assert.Error(t, err)
	assert.False(t, ok)
	assert.True(t, s.Authenticated())

	ok, err = s.Verify(ctx, &fakeAuth{err: &api.APIError{Kind: api.KindAuth, Status: 401}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Authenticated())
}
