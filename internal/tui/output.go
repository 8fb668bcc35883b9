package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/stream"
	"github.com/user/sawlah/internal/watch"
)

// TaskBackend is the part of the API the output view talks to.
type TaskBackend interface {
	Status(ctx context.Context, taskID string) (*model.Task, error)
	Kill(ctx context.Context, taskID string) (bool, error)
}

// OutputView shows the output of one task, either streamed live or loaded
// from history.
type OutputView struct {
	acc     *stream.Accumulator
	backend TaskBackend
	clip    io.Writer
	poller  *watch.Watcher
	post    func(tea.Msg)

	vp      viewport.Model
	task    model.Task
	live    bool
	follow  bool
	waiting bool
	notice  string
}

// NewOutputView creates the view. Copied text is written to clip as an
// OSC 52 sequence.
func NewOutputView(acc *stream.Accumulator, backend TaskBackend, clip io.Writer) *OutputView {
	return &OutputView{
		acc:     acc,
		backend: backend,
		clip:    clip,
		vp:      viewport.New(80, 20),
	}
}

// SetSize fits the viewport below the header and above the footer.
func (v *OutputView) SetSize(width, height int) {
	v.vp.Width = width
	h := height - 9
	if h < 3 {
		h = 3
	}
	v.vp.Height = h
}

// SetPoller makes live tasks poll their status on w until terminal. Each
// fetched state is delivered through post as a taskMsg.
func (v *OutputView) SetPoller(w *watch.Watcher, post func(tea.Msg)) {
	v.poller = w
	v.post = post
}

// Task returns the task being shown.
func (v *OutputView) Task() model.Task { return v.task }

// Live reports whether output is streaming.
func (v *OutputView) Live() bool { return v.live }

// Text returns the displayed output.
func (v *OutputView) Text() string {
	if v.live {
		return v.acc.Output()
	}
	return v.task.Output
}

// OpenLive clears the view and streams task's output.
func (v *OutputView) OpenLive(ctx context.Context, task model.Task) tea.Cmd {
	v.stopPolling()
	v.acc.Reset()
	v.task = task
	v.live = true
	v.follow = true
	v.notice = ""
	v.refresh()

	id := task.ID
	v.startPolling(ctx, id)
	connect := func() tea.Msg {
		return streamMsg{taskID: id, err: v.acc.Connect(ctx, id)}
	}
	return tea.Batch(connect, v.wait())
}

// OpenTask shows a finished task's stored output.
func (v *OutputView) OpenTask(task model.Task) {
	v.stopPolling()
	if v.live {
		v.acc.Disconnect()
	}
	v.task = task
	v.live = false
	v.follow = false
	v.notice = ""
	v.refresh()
	v.vp.GotoTop()
}

// Leave stops streaming but keeps what was received.
func (v *OutputView) Leave() {
	v.stopPolling()
	if v.live {
		v.acc.Disconnect()
	}
}

func (v *OutputView) startPolling(ctx context.Context, id string) {
	if v.poller == nil || v.backend == nil || id == "" {
		return
	}
	post := v.post
	v.poller.WatchTask(ctx, id, v.backend, func(t model.Task) {
		post(taskMsg{task: &t})
	}, nil)
}

func (v *OutputView) stopPolling() {
	if v.poller != nil && v.task.ID != "" {
		v.poller.Cancel(v.task.ID)
	}
}

func (v *OutputView) wait() tea.Cmd {
	if v.waiting {
		return nil
	}
	v.waiting = true
	updates := v.acc.Updates()
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return outputMsg{}
	}
}

func (v *OutputView) refresh() {
	v.vp.SetContent(RenderLines(v.Text()))
	if v.follow {
		v.vp.GotoBottom()
	}
}

// Update handles view messages.
func (v *OutputView) Update(ctx context.Context, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case outputMsg:
		v.waiting = false
		if !v.live {
			return nil
		}
		v.refresh()
		if v.acc.Done() {
			v.task.Output = v.acc.Output()
			v.live = false
			if err := v.acc.Err(); err != nil {
				v.notice = err.Error()
			}
			return v.fetchStatus(ctx)
		}
		return v.wait()

	case streamMsg:
		if msg.err != nil && msg.taskID == v.task.ID {
			v.notice = msg.err.Error()
		}
		return nil

	case tea.KeyMsg:
		switch msg.String() {
		case "c":
			v.notice = v.copy(v.Text())
			return nil
		case "C":
			v.notice = v.copy(v.task.Command)
			return nil
		case "f":
			v.follow = !v.follow
			if v.follow {
				v.vp.GotoBottom()
			}
			return nil
		case "x":
			return v.kill(ctx)
		}
	}

	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	return cmd
}

// SetTask updates the task metadata after a status refresh. The streamed
// text is kept when the backend returns none. A terminal status ends the
// live view once the stream is no longer connected.
func (v *OutputView) SetTask(t model.Task) {
	if t.ID != v.task.ID {
		return
	}
	if v.live && t.Status.IsTerminal() && !v.acc.Connected() {
		v.live = false
		v.task.Output = v.acc.Output()
	}
	if t.Output == "" {
		t.Output = v.task.Output
	}
	v.task = t
	if !v.live {
		v.refresh()
	}
}

// SetNotice shows a one-line message in the footer.
func (v *OutputView) SetNotice(s string) { v.notice = s }

func (v *OutputView) copy(text string) string {
	if text == "" {
		return "nothing to copy"
	}
	if _, err := osc52.New(text).WriteTo(v.clip); err != nil {
		return "copy failed: " + err.Error()
	}
	return fmt.Sprintf("copied %d bytes", len(text))
}

func (v *OutputView) fetchStatus(ctx context.Context) tea.Cmd {
	id := v.task.ID
	if id == "" {
		return nil
	}
	return func() tea.Msg {
		t, err := v.backend.Status(ctx, id)
		return taskMsg{task: t, err: err}
	}
}

func (v *OutputView) kill(ctx context.Context) tea.Cmd {
	id := v.task.ID
	if id == "" || v.task.Status.IsTerminal() {
		return nil
	}
	return func() tea.Msg {
		killed, err := v.backend.Kill(ctx, id)
		if err != nil {
			return noticeMsg(err.Error())
		}
		if !killed {
			return noticeMsg("task " + id + " was not running")
		}
		return noticeMsg("kill sent to " + id)
	}
}

// View renders the header, output and footer.
func (v *OutputView) View() string {
	var sb strings.Builder

	mode := DimStyle.Render("history")
	if v.live {
		mode = RenderStatus(v.acc.Connected(), "live", v.acc.State().String())
	}
	sb.WriteString(fmt.Sprintf("%s %s  %s  %s\n",
		LabelStyle.Render("Task:"), ValueStyle.Render(v.task.ID), StatusBadge(v.task.Status), mode))
	sb.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Command:"), truncate(v.task.Command, v.vp.Width-16)))
	sb.WriteString(strings.Repeat("─", v.vp.Width) + "\n")
	sb.WriteString(v.vp.View())
	sb.WriteString("\n" + strings.Repeat("─", v.vp.Width) + "\n")

	sum := classify.Summarize(v.Text())
	sb.WriteString(DimStyle.Render(fmt.Sprintf("%d ports • %d findings • %d subdomains • %d exploits • %3.f%%",
		len(sum.Ports), len(sum.Findings), len(sum.Subdomains), len(sum.ExploitHits), v.vp.ScrollPercent()*100)))
	if v.notice != "" {
		sb.WriteString("  " + WarningStyle.Render(v.notice))
	}
	sb.WriteString("\n")

	follow := "off"
	if v.follow {
		follow = "on"
	}
	sb.WriteString(HelpStyle.Render(fmt.Sprintf("↑/↓ scroll • f follow (%s) • c copy output • C copy command • x kill • esc back", follow)))
	return sb.String()
}
