package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/model"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessionStorage(openTemp(t))

	rec, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, rec)

	want := &SessionRecord{ServerURL: "http://localhost:8000", Token: "tok", Username: "admin", Role: "admin", ProjectID: 3}
	require.NoError(t, s.Save(want))

	want.Token = "tok2"
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok2", got.Token)
	assert.Equal(t, int64(3), got.ProjectID)

	require.NoError(t, s.Clear())
	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryInsertOrIgnore(t *testing.T) {
	h := NewHistoryStorage(openTemp(t))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rc := 0

	tasks := []model.Task{
		{ID: "a", ToolName: "nmap", Command: "nmap -F x", Status: model.StatusCompleted,
			StartedAt: model.NewTimestamp(start), FinishedAt: model.NewTimestamp(start.Add(time.Minute)),
			Output: "22/tcp open ssh", ReturnCode: &rc},
		{ID: "b", ToolName: "nmap", Status: model.StatusRunning, StartedAt: model.NewTimestamp(start)},
		{ID: "c", ToolName: "whatweb", Status: model.StatusError, StartedAt: model.NewTimestamp(start.Add(time.Hour))},
	}

	n, err := h.Save(tasks)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	tasks[0].Output = "changed"
	n, err = h.Save(tasks)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := h.Get("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "22/tcp open ssh", got.Output)
	require.NotNil(t, got.ReturnCode)
	assert.Equal(t, time.Minute, got.Duration(time.Now()))

	missing, err := h.Get("b")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := h.List("", 0)
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, task := range all {
		ids[i] = task.ID
	}
	if diff := cmp.Diff([]string{"c", "a"}, ids); diff != "" {
		t.Errorf("history order (-want +got):\n%s", diff)
	}

	nmap, err := h.List("nmap", 10)
	require.NoError(t, err)
	assert.Len(t, nmap, 1)

	count, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHistoryPrune(t *testing.T) {
	h := NewHistoryStorage(openTemp(t))
	_, err := h.Save([]model.Task{{ID: "a", ToolName: "nmap", Status: model.StatusCompleted}})
	require.NoError(t, err)

	n, err := h.Prune(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.Prune(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := h.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}
