package notify

import (
	"context"
	"sync"
	"time"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/watch"
)

// DefaultRegistryInterval is how often the task registry is refreshed.
const DefaultRegistryInterval = 5 * time.Second

// Lister fetches the backend task registry.
type Lister interface {
	Tasks(ctx context.Context) ([]model.Task, error)
}

// Registry is the background-task view: running and finished tasks as last
// reported by the backend.
type Registry struct {
	lister Lister

	mu      sync.RWMutex
	tasks   []model.Task
	updated time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(lister Lister) *Registry {
	return &Registry{lister: lister}
}

// Refresh replaces the snapshot with the backend's current registry.
func (r *Registry) Refresh(ctx context.Context) error {
	tasks, err := r.lister.Tasks(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.tasks = tasks
	r.updated = time.Now()
	r.mu.Unlock()
	return nil
}

// Follow refreshes the registry on w at interval until ctx is done or the
// job is cancelled. onUpdate, if set, runs after every successful refresh.
func (r *Registry) Follow(ctx context.Context, w *watch.Watcher, interval time.Duration, onUpdate func()) {
	if interval <= 0 {
		interval = DefaultRegistryInterval
	}
	w.Watch(ctx, "registry", "registry", interval, func(ctx context.Context) (bool, error) {
		if err := r.Refresh(ctx); err != nil {
			return false, err
		}
		if onUpdate != nil {
			onUpdate()
		}
		return false, nil
	})
}

// Running returns tasks still in progress.
func (r *Registry) Running() []model.Task {
	return r.filter(func(t model.Task) bool { return !t.Status.IsTerminal() })
}

// Finished returns tasks in a terminal state.
func (r *Registry) Finished() []model.Task {
	return r.filter(func(t model.Task) bool { return t.Status.IsTerminal() })
}

// All returns the whole snapshot, newest first.
func (r *Registry) All() []model.Task {
	return r.filter(func(model.Task) bool { return true })
}

// Updated returns when the snapshot was last refreshed.
func (r *Registry) Updated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updated
}

func (r *Registry) filter(keep func(model.Task) bool) []model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Task
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
