package notify

import (
	"context"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
)

// Backend is the part of the API the notification center talks to.
type Backend interface {
	Notifications(ctx context.Context, limit int, unreadOnly bool) (*api.NotificationPage, error)
	MarkRead(ctx context.Context, id model.ID) error
	MarkAllRead(ctx context.Context) error
}

// Center ties the feed and toasts to the backend.
type Center struct {
	Feed   *Feed
	Toasts *Toasts

	backend Backend
	limit   int
}

// NewCenter creates a center fetching up to limit notifications.
func NewCenter(backend Backend, limit int) *Center {
	f := NewFeed(limit)
	return &Center{
		Feed:    f,
		Toasts:  NewToasts(DefaultToastTTL),
		backend: backend,
		limit:   f.limit,
	}
}

// Refresh merges the latest page from the backend into the feed.
func (c *Center) Refresh(ctx context.Context) error {
	page, err := c.backend.Notifications(ctx, c.limit, false)
	if err != nil {
		return err
	}
	c.Feed.Merge(page.Notifications)
	return nil
}

// Receive handles a pushed notification: it is added to the feed and, if
// new, shown as a toast.
func (c *Center) Receive(n model.Notification) bool {
	if !c.Feed.Push(n) {
		return false
	}
	c.Toasts.Add(n)
	return true
}

// MarkRead marks an entry read on the backend, then locally.
func (c *Center) MarkRead(ctx context.Context, id model.ID) error {
	if err := c.backend.MarkRead(ctx, id); err != nil {
		return err
	}
	c.Feed.MarkRead(id)
	return nil
}

// MarkAllRead marks the whole feed read on the backend, then locally.
func (c *Center) MarkAllRead(ctx context.Context) error {
	if err := c.backend.MarkAllRead(ctx); err != nil {
		return err
	}
	c.Feed.MarkAllRead()
	return nil
}
