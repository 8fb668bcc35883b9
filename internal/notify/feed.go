// Package notify keeps the notification feed, toasts and the background
// task registry.
package notify

import (
	"sort"
	"strconv"
	"sync"

	"github.com/user/sawlah/internal/model"
)

// DefaultLimit caps the feed length.
const DefaultLimit = 100

// Feed is a newest-first notification list.
type Feed struct {
	mu    sync.RWMutex
	items []model.Notification
	limit int
}

// NewFeed creates a feed holding at most limit entries.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feed{limit: limit}
}

// Push prepends n. It returns false if a notification with the same id is
// already present.
func (f *Feed) Push(n model.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexLocked(n.ID) >= 0 {
		return false
	}
	f.items = append([]model.Notification{n}, f.items...)
	if len(f.items) > f.limit {
		f.items = f.items[:f.limit]
	}
	return true
}

// Merge folds a fetched batch into the feed. Entries already present take
// the fetched state.
func (f *Feed) Merge(batch []model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, n := range batch {
		if i := f.indexLocked(n.ID); i >= 0 {
			f.items[i] = n
			continue
		}
		f.items = append(f.items, n)
	}
	sort.SliceStable(f.items, func(i, j int) bool {
		return f.items[i].Timestamp.After(f.items[j].Timestamp.Time)
	})
	if len(f.items) > f.limit {
		f.items = f.items[:f.limit]
	}
}

func (f *Feed) indexLocked(id model.ID) int {
	for i, n := range f.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// MarkRead marks one entry read and reports whether it was found.
func (f *Feed) MarkRead(id model.ID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.indexLocked(id)
	if i < 0 {
		return false
	}
	f.items[i].Read = true
	return true
}

// MarkAllRead marks every entry read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].Read = true
	}
}

// Items returns a copy of the feed.
func (f *Feed) Items() []model.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]model.Notification(nil), f.items...)
}

// Len returns the number of entries.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Unread counts unread entries.
func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, item := range f.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Badge is the unread counter as displayed on the bell.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 99:
		return "99+"
	default:
		return strconv.Itoa(unread)
	}
}
