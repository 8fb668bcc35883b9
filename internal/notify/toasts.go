package notify

import (
	"sync"
	"time"

	"github.com/user/sawlah/internal/model"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 5 * time.Second

// Toast is a transient popup for a new notification.
type Toast struct {
	model.Notification
	Expires time.Time
}

// Toasts holds the visible popups.
type Toasts struct {
	mu    sync.Mutex
	items []Toast
	ttl   time.Duration
	now   func() time.Time
}

// NewToasts creates a toast stack with the given lifetime.
func NewToasts(ttl time.Duration) *Toasts {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &Toasts{ttl: ttl, now: time.Now}
}

// Add shows n until its lifetime elapses.
func (t *Toasts) Add(n model.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, Toast{Notification: n, Expires: t.now().Add(t.ttl)})
}

// Dismiss removes a toast early.
func (t *Toasts) Dismiss(id model.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.items[:0]
	for _, item := range t.items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	t.items = out
}

// Active drops expired toasts and returns the rest, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	out := t.items[:0]
	for _, item := range t.items {
		if now.Before(item.Expires) {
			out = append(out, item)
		}
	}
	t.items = out
	return append([]Toast(nil), out...)
}

// TTL returns the toast lifetime.
func (t *Toasts) TTL() time.Duration {
	return t.ttl
}
