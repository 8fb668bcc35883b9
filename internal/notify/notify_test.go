package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/watch"
)

func note(id int, read bool, at time.Time) model.Notification {
	return model.Notification{
		ID:        model.ID(fmt.Sprint(id)),
		Title:     fmt.Sprintf("n%d", id),
		Severity:  model.SeverityInfo,
		Timestamp: model.NewTimestamp(at),
		Read:      read,
	}
}

func TestFeedPushDedupesAndCaps(t *testing.T) {
	f := NewFeed(3)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 4; i++ {
		assert.True(t, f.Push(note(i, false, base.Add(time.Duration(i)*time.Minute))))
	}
	assert.False(t, f.Push(note(4, false, base)))

	items := f.Items()
	require.Len(t, items, 3)
	assert.Equal(t, model.ID("4"), items[0].ID)
	assert.Equal(t, model.ID("2"), items[2].ID)
}

func TestFeedMergeTakesFetchedState(t *testing.T) {
	f := NewFeed(0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.Push(note(1, false, base))
	f.Push(note(3, false, base.Add(2*time.Minute)))

	f.Merge([]model.Notification{
		note(1, true, base),
		note(2, false, base.Add(time.Minute)),
	})

	items := f.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []model.ID{"3", "2", "1"}, []model.ID{items[0].ID, items[1].ID, items[2].ID})
	assert.True(t, items[2].Read)
	assert.Equal(t, 2, f.Unread())
}

func TestFeedMarkRead(t *testing.T) {
	f := NewFeed(0)
	now := time.Now()
	f.Push(note(1, false, now))
	f.Push(note(2, false, now))

	assert.True(t, f.MarkRead("1"))
	assert.False(t, f.MarkRead("9"))
	assert.Equal(t, 1, f.Unread())

	f.MarkAllRead()
	assert.Zero(t, f.Unread())
}

func TestBadge(t *testing.T) {
	assert.Equal(t, "", Badge(0))
	assert.Equal(t, "7", Badge(7))
	assert.Equal(t, "99", Badge(99))
	assert.Equal(t, "99+", Badge(100))
}

func TestToastsExpire(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := NewToasts(0)
	ts.now = func() time.Time { return clock }

	ts.Add(note(1, false, clock))
	clock = clock.Add(2 * time.Second)
	ts.Add(note(2, false, clock))

	require.Len(t, ts.Active(), 2)

	clock = clock.Add(3500 * time.Millisecond)
	active := ts.Active()
	require.Len(t, active, 1)
	assert.Equal(t, model.ID("2"), active[0].ID)

	ts.Dismiss("2")
	assert.Empty(t, ts.Active())
}

type fakeBackend struct {
	page    api.NotificationPage
	marked  []model.ID
	allRead bool
	err     error
}

func (b *fakeBackend) Notifications(context.Context, int, bool) (*api.NotificationPage, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &b.page, nil
}

func (b *fakeBackend) MarkRead(_ context.Context, id model.ID) error {
	if b.err != nil {
		return b.err
	}
	b.marked = append(b.marked, id)
	return nil
}

func (b *fakeBackend) MarkAllRead(context.Context) error {
	if b.err != nil {
		return b.err
	}
	b.allRead = true
	return nil
}

func TestCenter(t *testing.T) {
	now := time.Now()
	be := &fakeBackend{page: api.NotificationPage{
		Notifications: []model.Notification{note(1, false, now), note(2, true, now.Add(-time.Minute))},
		Unread:        1,
	}}
	c := NewCenter(be, 0)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.Feed.Len())
	assert.Empty(t, c.Toasts.Active())

	assert.True(t, c.Receive(note(3, false, now.Add(time.Minute))))
	assert.False(t, c.Receive(note(3, false, now.Add(time.Minute))))
	assert.Len(t, c.Toasts.Active(), 1)
	assert.Equal(t, 2, c.Feed.Unread())

	require.NoError(t, c.MarkRead(ctx, "3"))
	assert.Equal(t, []model.ID{"3"}, be.marked)
	assert.Equal(t, 1, c.Feed.Unread())

	require.NoError(t, c.MarkAllRead(ctx))
	assert.True(t, be.allRead)
	assert.Zero(t, c.Feed.Unread())
}

func TestCenterKeepsLocalStateOnFailure(t *testing.T) {
	be := &fakeBackend{}
	c := NewCenter(be, 0)
	c.Receive(note(1, false, time.Now()))

	be.err = errors.New("boom")
	assert.Error(t, c.MarkRead(context.Background(), "1"))
	assert.Equal(t, 1, c.Feed.Unread())
}

var upgrader = websocket.Upgrader{}

func TestFollowerDeliversPushedNotifications(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/notifications", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		data, _ := json.Marshal(note(7, false, time.Now()))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteJSON(map[string]any{"type": "notification", "data": json.RawMessage(data)})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	c, err := api.NewClient(ts.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan model.Notification, 1)
	done := make(chan error, 1)
	go func() {
		done <- NewFollower(c, 10*time.Millisecond).Run(ctx, func(n model.Notification) { got <- n })
	}()

	select {
	case n := <-got:
		assert.Equal(t, model.ID("7"), n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification delivered")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestFollowerReportsTransportErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	c, err := api.NewClient(ts.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFollower(c, 10*time.Millisecond)
	var mu sync.Mutex
	var errs []error
	f.OnError = func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		if len(errs) == 2 {
			cancel()
		}
	}

	assert.ErrorIs(t, f.Run(ctx, func(model.Notification) {}), context.Canceled)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 2)
	assert.True(t, api.IsTransport(errs[0]))
}

type fakeLister struct {
	mu    sync.Mutex
	tasks []model.Task
	calls int
}

func (l *fakeLister) Tasks(context.Context) ([]model.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.tasks, nil
}

func TestRegistrySplitsRunningAndFinished(t *testing.T) {
	l := &fakeLister{tasks: []model.Task{
		{ID: "a", Status: model.StatusRunning},
		{ID: "b", Status: model.StatusCompleted},
		{ID: "c", Status: model.StatusPending},
		{ID: "d", Status: model.StatusKilled},
	}}
	r := NewRegistry(l)
	require.NoError(t, r.Refresh(context.Background()))

	assert.Len(t, r.All(), 4)
	assert.Equal(t, "a", r.Running()[0].ID)
	assert.Len(t, r.Running(), 2)
	assert.Len(t, r.Finished(), 2)
	assert.False(t, r.Updated().IsZero())
}

func TestRegistryFollow(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := &fakeLister{tasks: []model.Task{{ID: "a", Status: model.StatusRunning}}}
	r := NewRegistry(l)
	w := watch.New(watch.Options{})
	defer w.Stop()

	updates := make(chan struct{}, 8)
	r.Follow(context.Background(), w, 5*time.Millisecond, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	for i := 0; i < 2; i++ {
		select {
		case <-updates:
		case <-time.After(2 * time.Second):
			t.Fatal("registry never refreshed")
		}
	}
	assert.True(t, w.Active("registry"))
	assert.Len(t, r.Running(), 1)
}
