package devserver

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/sawlah/internal/model"
)

// task is a simulated tool run. Output only grows; watchers wait on
// changed, which is closed and replaced on every append.
type task struct {
	mu        sync.Mutex
	id        string
	tool      string
	command   string
	target    string
	projectID int64
	status    model.TaskStatus
	started   time.Time
	finished  time.Time
	output    strings.Builder
	rc        *int
	changed   chan struct{}
	cancel    context.CancelFunc
	onDone    []func(*task)
}

func newTask(id, tool, command, target string, projectID int64) *task {
	return &task{
		id:        id,
		tool:      tool,
		command:   command,
		target:    target,
		projectID: projectID,
		status:    model.StatusRunning,
		started:   time.Now().UTC(),
		changed:   make(chan struct{}),
	}
}

func (t *task) append(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.output.WriteString(s)
	t.signalLocked()
}

func (t *task) signalLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// finish moves the task to a terminal state once. It reports whether this
// call did the transition.
func (t *task) finish(status model.TaskStatus, rc int, trailer string) bool {
	t.mu.Lock()
	if t.status.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	t.status = status
	t.finished = time.Now().UTC()
	t.rc = &rc
	t.output.WriteString(trailer)
	t.signalLocked()
	hooks := t.onDone
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(t)
	}
	return true
}

// since returns the output after offset, whether the task is done and a
// channel closed on the next change.
func (t *task) since(offset int) (string, bool, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.output.String()
	if offset > len(out) {
		offset = len(out)
	}
	return out[offset:], t.status.IsTerminal(), t.changed
}

func (t *task) snapshot() model.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := model.Task{
		ID:        t.id,
		ToolName:  t.tool,
		Command:   t.command,
		Status:    t.status,
		StartedAt: model.NewTimestamp(t.started),
		Output:    t.output.String(),
	}
	if !t.finished.IsZero() {
		m.FinishedAt = model.NewTimestamp(t.finished)
	}
	if t.rc != nil {
		rc := *t.rc
		m.ReturnCode = &rc
	}
	return m
}

func (t *task) state() model.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// wireTask is a row of the registry and history listings.
type wireTask struct {
	ID         string           `json:"id"`
	ToolName   string           `json:"tool_name"`
	Command    string           `json:"command"`
	Status     model.TaskStatus `json:"status"`
	StartedAt  model.Timestamp  `json:"started_at"`
	FinishedAt model.Timestamp  `json:"finished_at"`
	Output     string           `json:"output,omitempty"`
	ReturnCode *int             `json:"return_code"`
}

func toWire(m model.Task, withOutput bool) wireTask {
	w := wireTask{
		ID:         m.ID,
		ToolName:   m.ToolName,
		Command:    m.Command,
		Status:     m.Status,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		ReturnCode: m.ReturnCode,
	}
	if withOutput {
		w.Output = m.Output
	}
	return w
}

type stage struct {
	StageID string           `json:"stage_id,omitempty"`
	Tool    string           `json:"tool"`
	Status  model.TaskStatus `json:"status"`
	TaskID  *string          `json:"task_id"`
}

type pipelineRun struct {
	Status       model.TaskStatus `json:"status"`
	Stages       []stage          `json:"stages"`
	CurrentStage int              `json:"current_stage"`
	TotalStages  int              `json:"total_stages"`
	StartedAt    model.Timestamp  `json:"started_at"`
	FinishedAt   *model.Timestamp `json:"finished_at,omitempty"`
}

type reconRun struct {
	model.WebReconSession
	taskIDs []string
}

type reportFile struct {
	model.ReportFile
	content []byte
}

// feed holds notifications, newest last, and wakes push-channel watchers.
type feed struct {
	mu      sync.Mutex
	items   []model.Notification
	nextID  int
	changed chan struct{}
}

const maxNotifications = 200

func newFeed() *feed {
	return &feed{nextID: 1, changed: make(chan struct{})}
}

func (f *feed) push(sev model.Severity, title, message, tool, taskID string) model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := model.Notification{
		ID:        model.ID(strconv.Itoa(f.nextID)),
		Severity:  sev,
		Title:     title,
		Message:   message,
		ToolName:  tool,
		TaskID:    taskID,
		Timestamp: model.NewTimestamp(time.Now().UTC()),
	}
	f.nextID++
	f.items = append(f.items, n)
	if len(f.items) > maxNotifications {
		f.items = f.items[len(f.items)-maxNotifications:]
	}
	close(f.changed)
	f.changed = make(chan struct{})
	return n
}

// after returns notifications with an id greater than last.
func (f *feed) after(last int) ([]model.Notification, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.items {
		if id, _ := strconv.Atoi(n.ID.String()); id > last {
			out = append(out, n)
		}
	}
	return out, f.changed
}

func (f *feed) newest() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextID - 1
}

func (f *feed) list(limit int, unreadOnly bool) ([]model.Notification, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	unread := 0
	var out []model.Notification
	for i := len(f.items) - 1; i >= 0; i-- {
		n := f.items[i]
		if !n.Read {
			unread++
		}
		if unreadOnly && n.Read {
			continue
		}
		if limit > 0 && len(out) >= limit {
			continue
		}
		out = append(out, n)
	}
	return out, unread
}

func (f *feed) markRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID.String() == id {
			f.items[i].Read = true
			return true
		}
	}
	return false
}

func (f *feed) markAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].Read = true
	}
}
