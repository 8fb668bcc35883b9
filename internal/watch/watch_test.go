package watch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
)

// scriptedTasks replays a status sequence per task, repeating the last one.
type scriptedTasks struct {
	mu     sync.Mutex
	script map[string][]model.TaskStatus
	calls  map[string]int
	fail   map[string]error
}

func newScripted(script map[string][]model.TaskStatus) *scriptedTasks {
	return &scriptedTasks{script: script, calls: map[string]int{}, fail: map[string]error{}}
}

func (s *scriptedTasks) Status(_ context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[id]
	s.calls[id]++
	if err, ok := s.fail[id]; ok {
		return nil, err
	}
	seq, ok := s.script[id]
	if !ok {
		return nil, &api.APIError{Kind: api.KindNotFound, Message: "Task not found"}
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return &model.Task{ID: id, Status: seq[n]}, nil
}

func (s *scriptedTasks) count(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func TestWatchTaskStopsAtTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch := newScripted(map[string][]model.TaskStatus{
		"t1": {model.StatusRunning, model.StatusRunning, model.StatusCompleted},
	})
	w := New(Options{TaskInterval: 5 * time.Millisecond})
	defer w.Stop()

	var updates []model.TaskStatus
	var mu sync.Mutex
	done := make(chan model.Task, 1)
	w.WatchTask(context.Background(), "t1", fetch, func(task model.Task) {
		mu.Lock()
		updates = append(updates, task.Status)
		mu.Unlock()
	}, func(task model.Task) { done <- task })

	select {
	case final := <-done:
		assert.Equal(t, model.StatusCompleted, final.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("task never reached a terminal status")
	}

	require.Eventually(t, func() bool { return !w.Active("t1") }, time.Second, 5*time.Millisecond)
	calls := fetch.count("t1")
	assert.Equal(t, 3, calls)

	// No further requests after the terminal observation.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, fetch.count("t1"))

	mu.Lock()
	assert.Equal(t, []model.TaskStatus{model.StatusRunning, model.StatusRunning, model.StatusCompleted}, updates)
	mu.Unlock()
}

func TestWatchErrorsAreCounted(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch := newScripted(map[string][]model.TaskStatus{"t1": {model.StatusRunning}})
	fetch.fail["t1"] = errors.New("connection reset")

	w := New(Options{TaskInterval: 5 * time.Millisecond})
	w.WatchTask(context.Background(), "t1", fetch, nil, nil)

	require.Eventually(t, func() bool {
		st := w.Statuses()
		return len(st) == 1 && st[0].ErrorCount >= 2
	}, time.Second, 5*time.Millisecond)

	st := w.Statuses()[0]
	assert.Equal(t, "task", st.Kind)
	assert.Equal(t, "connection reset", st.LastError)

	w.Stop()
	assert.Empty(t, w.Statuses())
}

func TestCancelAndReplace(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch := newScripted(map[string][]model.TaskStatus{"t1": {model.StatusRunning}})
	w := New(Options{TaskInterval: 5 * time.Millisecond})
	defer w.Stop()

	var first, second atomic.Int32
	w.WatchTask(context.Background(), "t1", fetch, func(model.Task) { first.Add(1) }, nil)
	w.WatchTask(context.Background(), "t1", fetch, func(model.Task) { second.Add(1) }, nil)

	require.Eventually(t, func() bool { return second.Load() >= 2 }, time.Second, 5*time.Millisecond)
	before := first.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, first.Load(), "replaced job kept polling")

	assert.True(t, w.Cancel("t1"))
	assert.False(t, w.Cancel("t1"))
	assert.False(t, w.Active("t1"))
}

type pipelineScript struct {
	n atomic.Int32
}

func (p *pipelineScript) PipelineStatus(_ context.Context, id string) (*model.PipelineStatus, error) {
	n := p.n.Add(1)
	st := &model.PipelineStatus{ID: id, Status: model.StatusRunning, CurrentStage: int(n), TotalStages: 2}
	if n >= 2 {
		st.Status = model.StatusCompleted
	}
	return st, nil
}

func TestWatchPipeline(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := New(Options{PipelineInterval: 5 * time.Millisecond})
	defer w.Stop()

	fetch := &pipelineScript{}
	done := make(chan model.PipelineStatus, 1)
	w.WatchPipeline(context.Background(), "p1", fetch, nil, func(st model.PipelineStatus) { done <- st })

	select {
	case st := <-done:
		assert.True(t, st.Finished())
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never finished")
	}
	require.Eventually(t, func() bool { return !w.Active("p1") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), fetch.n.Load())
}

func TestContextCancelStopsJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch := newScripted(map[string][]model.TaskStatus{"t1": {model.StatusRunning}})
	w := New(Options{TaskInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	w.WatchTask(ctx, "t1", fetch, nil, nil)
	cancel()

	require.Eventually(t, func() bool { return !w.Active("t1") }, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWait(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch := newScripted(map[string][]model.TaskStatus{
		"a": {model.StatusRunning, model.StatusCompleted},
		"b": {model.StatusRunning, model.StatusRunning, model.StatusKilled},
	})

	tasks, err := Wait(context.Background(), fetch, 5*time.Millisecond, "a", "b")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, model.StatusCompleted, tasks[0].Status)
	assert.Equal(t, model.StatusKilled, tasks[1].Status)
}

func TestWaitUnknownTask(t *testing.T) {
	defer goleak.VerifyNone(t)

	fetch := newScripted(map[string][]model.TaskStatus{"a": {model.StatusRunning}})
	_, err := Wait(context.Background(), fetch, 5*time.Millisecond, "a", "ghost")
	assert.True(t, api.IsNotFound(err))
}
