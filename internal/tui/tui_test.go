package tui

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/notify"
	"github.com/user/sawlah/internal/pipeline"
	"github.com/user/sawlah/internal/stream"
	"github.com/user/sawlah/internal/tools"
	"github.com/user/sawlah/internal/watch"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRenderLines(t *testing.T) {
	out := RenderLines("22/tcp open ssh\nplain text")
	assert.Contains(t, out, "22/tcp open ssh")
	assert.Contains(t, out, "plain text")
	assert.Contains(t, out, "   2 ")
	assert.Empty(t, RenderLines(""))
}

func TestDashboardSelection(t *testing.T) {
	data := &DashboardData{
		Server:   "http://localhost:8000",
		User:     model.User{Username: "admin", Role: "admin"},
		Running:  []model.Task{{ID: "r1", ToolName: "nmap", Status: model.StatusRunning}},
		Finished: []model.Task{{ID: "f1", ToolName: "whatweb", Status: model.StatusCompleted}},
		Unread:   120,
	}
	d := NewDashboard(data, 100, 40)

	sel, ok := d.Selected()
	require.True(t, ok)
	assert.Equal(t, "r1", sel.ID)

	d.Move(5)
	sel, _ = d.Selected()
	assert.Equal(t, "f1", sel.ID)

	d.SetData(&DashboardData{})
	_, ok = d.Selected()
	assert.False(t, ok)

	d.SetData(data)
	view := d.View()
	assert.Contains(t, view, "99+")
	assert.Contains(t, view, "nmap")
}

func TestLoginFormSubmits(t *testing.T) {
	f := NewLoginForm()
	var gotUser, gotPass string
	var gotRegister bool
	calls := 0
	submit := func(u, p string, register bool) tea.Cmd {
		calls++
		gotUser, gotPass, gotRegister = u, p, register
		return nil
	}

	f.Update(key("admin"), submit)
	f.Update(key("enter"), submit)
	assert.Equal(t, 0, calls, "password missing")
	assert.Equal(t, 1, f.focus, "enter moves to the empty password")

	f.Update(key("sawlah"), submit)
	f.Update(tea.KeyMsg{Type: tea.KeyCtrlR}, submit)
	f.Update(key("enter"), submit)

	require.Equal(t, 1, calls)
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "sawlah", gotPass)
	assert.True(t, gotRegister)

	f.Update(key("enter"), submit)
	assert.Equal(t, 1, calls, "busy form ignores enter")

	f.SetError(errors.New("invalid credentials"))
	assert.Contains(t, f.View(80), "invalid credentials")
}

type fakePipelines struct {
	req   api.PipelineRequest
	quick string
}

func (f *fakePipelines) RunPipeline(_ context.Context, req api.PipelineRequest) (string, error) {
	f.req = req
	return "p1", nil
}

func (f *fakePipelines) QuickPipeline(_ context.Context, _ int64, _, mode string) (string, error) {
	f.quick = mode
	return "q1", nil
}

func keys(b *pipeline.Builder) []string {
	var out []string
	for _, blk := range b.Blocks() {
		out = append(out, blk.Key)
	}
	return out
}

func TestPipelineViewBuildsAndSubmits(t *testing.T) {
	backend := &fakePipelines{}
	v := NewPipelineView(backend)
	ctx := context.Background()

	v.Update(ctx, 3, key("enter"))
	v.Update(ctx, 3, key("j"))
	v.Update(ctx, 3, key("enter"))
	assert.Equal(t, []string{"nmap", "nmap_service"}, keys(v.Builder()))

	v.Update(ctx, 3, key("tab"))
	v.Update(ctx, 3, key("J"))
	assert.Equal(t, []string{"nmap_service", "nmap"}, keys(v.Builder()))

	assert.Nil(t, v.Update(ctx, 3, key("r")))
	assert.ErrorIs(t, v.Err(), pipeline.ErrEmptyTarget)

	v.Update(ctx, 3, key("t"))
	assert.True(t, v.Editing())
	v.Update(ctx, 3, key("10.0.0.5"))
	v.Update(ctx, 3, key("enter"))
	assert.False(t, v.Editing())

	cmd := v.Update(ctx, 3, key("r"))
	require.NotNil(t, cmd)
	msg := cmd()
	started, ok := msg.(pipelineStartedMsg)
	require.True(t, ok)
	assert.Equal(t, "p1", started.id)
	assert.Equal(t, int64(3), backend.req.ProjectID)
	require.Len(t, backend.req.Stages, 2)

	blocks := v.Builder().Blocks()
	v.Update(ctx, 3, started)
	v.Update(ctx, 3, pipelineStatusMsg{status: model.PipelineStatus{
		ID:     "p1",
		Status: model.StatusRunning,
		Stages: []model.StageStatus{
			{StageID: blocks[0].UID, Status: model.StatusCompleted, TaskID: "t1"},
			{StageID: blocks[1].UID, Status: model.StatusRunning, TaskID: "t2"},
		},
	}})
	blocks = v.Builder().Blocks()
	assert.Equal(t, model.StatusCompleted, blocks[0].Status)
	assert.Equal(t, "t2", blocks[1].TaskID)

	// a status for another pipeline is ignored
	v.Update(ctx, 3, pipelineStatusMsg{status: model.PipelineStatus{ID: "other"}})
	assert.Equal(t, "p1", v.Running())
}

func TestPipelineViewQuickMode(t *testing.T) {
	backend := &fakePipelines{}
	v := NewPipelineView(backend)
	ctx := context.Background()
	v.SetTarget("10.0.0.5")

	v.Update(ctx, 0, key("m"))
	assert.Equal(t, []string{"nmap", "nmap_service", "nxc", "enum4linux", "whatweb", "nikto", "nmap_vuln"}, keys(v.Builder()))
	v.Update(ctx, 0, key("m"))
	assert.Equal(t, []string{"nmap", "nmap_service"}, keys(v.Builder()))

	cmd := v.Update(ctx, 0, key("r"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, "recon", backend.quick)

	// editing the chain turns it into a custom run
	v.Update(ctx, 0, key("tab"))
	v.Update(ctx, 0, key("x"))
	cmd = v.Update(ctx, 0, key("r"))
	require.NotNil(t, cmd)
	cmd()
	require.Len(t, backend.req.Stages, 1)
}

type fakeFeedBackend struct {
	read []model.ID
}

func (f *fakeFeedBackend) Notifications(context.Context, int, bool) (*api.NotificationPage, error) {
	return &api.NotificationPage{}, nil
}

func (f *fakeFeedBackend) MarkRead(_ context.Context, id model.ID) error {
	f.read = append(f.read, id)
	return nil
}

func (f *fakeFeedBackend) MarkAllRead(context.Context) error { return nil }

func TestNotificationsViewOpensTask(t *testing.T) {
	backend := &fakeFeedBackend{}
	center := notify.NewCenter(backend, 10)
	center.Receive(model.Notification{ID: "1", Title: "nmap completed", TaskID: "t1", Severity: model.SeveritySuccess})

	v := NewNotificationsView(center)
	assert.Contains(t, v.View(100), "1 unread")

	cmd := v.Update(context.Background(), key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, openTaskMsg{taskID: "t1"}, cmd())
	assert.Equal(t, []model.ID{"1"}, backend.read)
	assert.Equal(t, 0, center.Feed.Unread())

	toasts := renderToasts(center.Toasts.Active())
	assert.Contains(t, toasts, "nmap completed")
}

func TestOutputViewHistoryAndCopy(t *testing.T) {
	var clip bytes.Buffer
	acc := stream.New(nil)
	defer acc.Close()
	v := NewOutputView(acc, nil, &clip)
	v.SetSize(100, 30)

	v.OpenTask(model.Task{ID: "t1", Command: "nmap 10.0.0.5", Status: model.StatusCompleted,
		Output: "22/tcp open ssh OpenSSH 8.9\n"})
	assert.False(t, v.Live())
	assert.Contains(t, v.View(), "1 ports")

	v.Update(context.Background(), key("c"))
	assert.Contains(t, clip.String(), base64.StdEncoding.EncodeToString([]byte(v.Text())))

	// finished tasks cannot be killed
	assert.Nil(t, v.Update(context.Background(), key("x")))
}

type fakeRunner struct {
	got tools.Params
	pid int64
}

func (f *fakeRunner) Run(_ context.Context, p tools.Params, projectID int64) (*model.RunResult, error) {
	f.got, f.pid = p, projectID
	return &model.RunResult{TaskID: "t9", Command: "nmap -sV 10.0.0.5"}, nil
}

func TestRunFormSubmitsTypedParams(t *testing.T) {
	backend := &fakeRunner{}
	f := NewRunForm(backend)
	ctx := context.Background()

	for f.Tool() != "nmap" {
		f.Update(ctx, 4, key("j"))
	}
	f.Update(ctx, 4, key("enter"))
	require.True(t, f.Editing())

	// target is required
	f.Update(ctx, 4, key("scan_type=service"))
	assert.Nil(t, f.Update(ctx, 4, key("enter")))
	require.Error(t, f.Err())

	f.input.SetValue("target=10.0.0.5 scan_type=service")
	cmd := f.Update(ctx, 4, key("enter"))
	require.NotNil(t, cmd)
	assert.False(t, f.Editing())

	started, ok := cmd().(runStartedMsg)
	require.True(t, ok)
	assert.Equal(t, tools.Nmap{Target: "10.0.0.5", ScanType: "service", Verbose: true}, backend.got)
	assert.Equal(t, int64(4), backend.pid)

	open := f.Update(ctx, 4, started)
	require.NotNil(t, open)
	msg, ok := open().(taskMsg)
	require.True(t, ok)
	assert.True(t, msg.open)
	assert.Equal(t, "t9", msg.task.ID)
	assert.Equal(t, model.StatusPending, msg.task.Status)
}

type sequenceTasks struct {
	mu     sync.Mutex
	states []model.TaskStatus
	calls  int
}

func (s *sequenceTasks) Status(_ context.Context, id string) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[min(s.calls, len(s.states)-1)]
	s.calls++
	return &model.Task{ID: id, ToolName: "nmap", Status: st}, nil
}

func (s *sequenceTasks) Kill(context.Context, string) (bool, error) { return false, nil }

func (s *sequenceTasks) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestOutputViewPollsLiveTaskUntilTerminal(t *testing.T) {
	backend := &sequenceTasks{states: []model.TaskStatus{model.StatusRunning, model.StatusCompleted}}
	acc := stream.New(nil)
	defer acc.Close()
	w := watch.New(watch.Options{TaskInterval: 10 * time.Millisecond})
	defer w.Stop()

	msgs := make(chan tea.Msg, 8)
	v := NewOutputView(acc, backend, &bytes.Buffer{})
	v.SetPoller(w, func(m tea.Msg) { msgs <- m })

	// the stream never connects; only polling can move the status
	v.OpenLive(context.Background(), model.Task{ID: "t1", Status: model.StatusRunning})
	require.True(t, v.Live())

	deadline := time.After(2 * time.Second)
	for !v.Task().Status.IsTerminal() {
		select {
		case m := <-msgs:
			tm, ok := m.(taskMsg)
			require.True(t, ok)
			assert.False(t, tm.open)
			v.SetTask(*tm.task)
		case <-deadline:
			t.Fatalf("status stuck at %s after %d fetches", v.Task().Status, backend.fetches())
		}
	}

	assert.Equal(t, model.StatusCompleted, v.Task().Status)
	assert.False(t, v.Live())
	assert.Equal(t, 2, backend.fetches())
	assert.Eventually(t, func() bool { return !w.Active("t1") }, time.Second, 5*time.Millisecond)
}

func TestOutputViewLeaveStopsPolling(t *testing.T) {
	backend := &sequenceTasks{states: []model.TaskStatus{model.StatusRunning}}
	acc := stream.New(nil)
	defer acc.Close()
	w := watch.New(watch.Options{TaskInterval: time.Hour})
	defer w.Stop()

	v := NewOutputView(acc, backend, &bytes.Buffer{})
	v.SetPoller(w, func(tea.Msg) {})
	v.OpenLive(context.Background(), model.Task{ID: "t2", Status: model.StatusRunning})
	require.True(t, w.Active("t2"))

	v.Leave()
	assert.False(t, w.Active("t2"))
}
