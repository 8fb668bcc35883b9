// Package watch polls backend state at a fixed interval until it reaches a
// terminal status.
package watch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/util"
)

// Default poll intervals.
const (
	DefaultTaskInterval     = 2 * time.Second
	DefaultPipelineInterval = 3 * time.Second
)

// PollFunc performs one check. It returns true once no further checks are
// needed.
type PollFunc func(ctx context.Context) (done bool, err error)

// TaskFetcher reads the status of one task.
type TaskFetcher interface {
	Status(ctx context.Context, taskID string) (*model.Task, error)
}

// PipelineFetcher reads the status of one pipeline.
type PipelineFetcher interface {
	PipelineStatus(ctx context.Context, id string) (*model.PipelineStatus, error)
}

// Job is one independent poll loop.
type Job struct {
	ID       string
	Kind     string
	Interval time.Duration
	poll     PollFunc

	lastPoll   time.Time
	lastError  error
	errorCount int
	polls      int
	cancel     context.CancelFunc
	mu         sync.RWMutex
}

// JobStatus reports the state of a job.
type JobStatus struct {
	ID         string        `json:"id"`
	Kind       string        `json:"kind"`
	Interval   time.Duration `json:"interval"`
	LastPoll   time.Time     `json:"last_poll"`
	Polls      int           `json:"polls"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorCount int           `json:"error_count"`
}

// Options configures a Watcher.
type Options struct {
	TaskInterval     time.Duration
	PipelineInterval time.Duration
}

// Watcher owns poll jobs keyed by id.
type Watcher struct {
	opts Options
	jobs map[string]*Job
	mu   sync.Mutex
	wg   sync.WaitGroup
}

// New creates a watcher. Zero intervals take the defaults.
func New(opts Options) *Watcher {
	if opts.TaskInterval <= 0 {
		opts.TaskInterval = DefaultTaskInterval
	}
	if opts.PipelineInterval <= 0 {
		opts.PipelineInterval = DefaultPipelineInterval
	}
	return &Watcher{
		opts: opts,
		jobs: make(map[string]*Job),
	}
}

// Watch starts polling under id, replacing any job with the same id. The
// first check happens one interval after the call.
func (w *Watcher) Watch(ctx context.Context, id, kind string, interval time.Duration, poll PollFunc) {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:       id,
		Kind:     kind,
		Interval: interval,
		poll:     poll,
		cancel:   cancel,
	}

	w.mu.Lock()
	if old, ok := w.jobs[id]; ok {
		old.cancel()
	}
	w.jobs[id] = job
	w.mu.Unlock()

	util.Debug("watch: %s %s every %s", kind, id, interval)

	w.wg.Add(1)
	go w.run(jobCtx, job)
}

func (w *Watcher) run(ctx context.Context, job *Job) {
	defer w.wg.Done()
	defer w.remove(job)
	defer job.cancel()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		done, err := job.poll(ctx)

		job.mu.Lock()
		job.lastPoll = time.Now()
		job.polls++
		if err != nil && ctx.Err() == nil {
			job.lastError = err
			job.errorCount++
			util.Warn("watch: %s %s poll failed: %v", job.Kind, job.ID, err)
		} else {
			job.lastError = nil
		}
		job.mu.Unlock()

		if done {
			util.Debug("watch: %s %s finished after %d polls", job.Kind, job.ID, job.polls)
			return
		}
	}
}

func (w *Watcher) remove(job *Job) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.jobs[job.ID] == job {
		delete(w.jobs, job.ID)
	}
}

// WatchTask polls a task until its status is terminal. onUpdate receives
// every fetched state; onDone, if set, runs once with the terminal state.
func (w *Watcher) WatchTask(ctx context.Context, id string, fetch TaskFetcher, onUpdate, onDone func(model.Task)) {
	w.Watch(ctx, id, "task", w.opts.TaskInterval, func(ctx context.Context) (bool, error) {
		t, err := fetch.Status(ctx, id)
		if err != nil {
			return false, err
		}
		if onUpdate != nil {
			onUpdate(*t)
		}
		if t.Status.IsTerminal() {
			if onDone != nil {
				onDone(*t)
			}
			return true, nil
		}
		return false, nil
	})
}

// WatchPipeline polls a pipeline until it completes or fails.
func (w *Watcher) WatchPipeline(ctx context.Context, id string, fetch PipelineFetcher, onUpdate, onDone func(model.PipelineStatus)) {
	w.Watch(ctx, id, "pipeline", w.opts.PipelineInterval, func(ctx context.Context) (bool, error) {
		st, err := fetch.PipelineStatus(ctx, id)
		if err != nil {
			return false, err
		}
		if onUpdate != nil {
			onUpdate(*st)
		}
		if st.Finished() {
			if onDone != nil {
				onDone(*st)
			}
			return true, nil
		}
		return false, nil
	})
}

// Cancel stops the job with the given id.
func (w *Watcher) Cancel(id string) bool {
	w.mu.Lock()
	job, ok := w.jobs[id]
	if ok {
		delete(w.jobs, id)
	}
	w.mu.Unlock()

	if ok {
		job.cancel()
	}
	return ok
}

// Active reports whether a job with id is polling.
func (w *Watcher) Active(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.jobs[id]
	return ok
}

// Stop cancels every job and waits for them to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	for id, job := range w.jobs {
		job.cancel()
		delete(w.jobs, id)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Statuses reports the state of every active job, ordered by id.
func (w *Watcher) Statuses() []JobStatus {
	w.mu.Lock()
	jobs := make([]*Job, 0, len(w.jobs))
	for _, job := range w.jobs {
		jobs = append(jobs, job)
	}
	w.mu.Unlock()

	statuses := make([]JobStatus, 0, len(jobs))
	for _, job := range jobs {
		job.mu.RLock()
		status := JobStatus{
			ID:         job.ID,
			Kind:       job.Kind,
			Interval:   job.Interval,
			LastPoll:   job.lastPoll,
			Polls:      job.polls,
			ErrorCount: job.errorCount,
		}
		if job.lastError != nil {
			status.LastError = job.lastError.Error()
		}
		job.mu.RUnlock()
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}
