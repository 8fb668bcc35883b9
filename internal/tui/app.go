// Package tui provides a terminal user interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/sawlah/internal/api"
	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/notify"
	"github.com/user/sawlah/internal/session"
	"github.com/user/sawlah/internal/storage"
	"github.com/user/sawlah/internal/stream"
	"github.com/user/sawlah/internal/util"
	"github.com/user/sawlah/internal/watch"
)

// Options wires the application to the backend and local state.
type Options struct {
	Client  *api.Client
	Session *session.Session
	Config  *util.Config
	// History caches finished tasks; optional.
	History *storage.HistoryStorage
}

// App is the main TUI application.
type App struct {
	opts Options
}

// NewApp creates a new TUI application.
func NewApp(opts Options) *App {
	return &App{opts: opts}
}

// Run starts the TUI application.
func (a *App) Run() error {
	if err := a.opts.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newAppModel(ctx, a.opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.bg.setSend(p.Send)

	_, err := p.Run()
	m.shutdown()
	return err
}

type screen int

const (
	screenLogin screen = iota
	screenDashboard
	screenOutput
	screenPipeline
	screenGraph
	screenNotifications
	screenRun
)

var screenNames = []struct {
	screen screen
	key    string
	label  string
}{
	{screenDashboard, "d", "Dashboard"},
	{screenRun, "s", "Run"},
	{screenPipeline, "p", "Pipelines"},
	{screenGraph, "g", "Map"},
	{screenNotifications, "n", "Notifications"},
}

// Messages
type (
	verifiedMsg struct {
		ok  bool
		err error
	}
	loginMsg struct {
		err error
	}
	registryMsg        struct{}
	feedMsg            struct{}
	toastTickMsg       struct{}
	outputMsg          struct{}
	noticeMsg          string
	notificationMsg    struct{ n model.Notification }
	pipelineStatusMsg  struct{ status model.PipelineStatus }
	pipelineStartedMsg struct {
		id  string
		err error
	}
	streamMsg struct {
		taskID string
		err    error
	}
	taskMsg struct {
		task *model.Task
		err  error
		open bool
	}
	openTaskMsg struct {
		taskID string
	}
	targetsMsg struct {
		targets []model.Summary
		err     error
	}
	graphMsg struct {
		graph *model.Graph
		err   error
	}
)

func openTask(id string) tea.Cmd {
	return func() tea.Msg { return openTaskMsg{taskID: id} }
}

// background owns the goroutines that feed the UI while logged in.
type background struct {
	client   *api.Client
	cfg      *util.Config
	history  *storage.HistoryStorage
	watcher  *watch.Watcher
	registry *notify.Registry
	center   *notify.Center

	mu      sync.Mutex
	send    func(tea.Msg)
	cancel  context.CancelFunc
	ctx     context.Context
	wg      *sync.WaitGroup
	running bool
}

func newBackground(parent context.Context, opts Options) *background {
	return &background{
		client:  opts.Client,
		cfg:     opts.Config,
		history: opts.History,
		watcher: watch.New(watch.Options{
			TaskInterval:     opts.Config.PollInterval,
			PipelineInterval: opts.Config.PipelinePollInterval,
		}),
		registry: notify.NewRegistry(opts.Client),
		center:   notify.NewCenter(opts.Client, opts.Config.NotificationLimit),
		ctx:      parent,
		send:     func(tea.Msg) {},
	}
}

func (b *background) setSend(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *background) post(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	send(msg)
}

// start launches the registry poll and the notification channel.
func (b *background) start(parent context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	wg := &sync.WaitGroup{}
	b.ctx, b.cancel, b.wg, b.running = ctx, cancel, wg, true
	b.mu.Unlock()

	b.registry.Follow(ctx, b.watcher, b.cfg.RegistryPollInterval, func() {
		b.cache()
		b.post(registryMsg{})
	})

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := b.registry.Refresh(ctx); err != nil {
			util.Warn("tui: initial task list failed: %v", err)
		}
		if err := b.center.Refresh(ctx); err != nil {
			util.Warn("tui: initial notifications failed: %v", err)
		}
		b.cache()
		b.post(registryMsg{})
	}()
	go func() {
		defer wg.Done()
		f := notify.NewFollower(b.client, notify.DefaultRetry)
		f.OnError = func(err error) { util.Debug("tui: notification channel: %v", err) }
		_ = f.Run(ctx, func(n model.Notification) {
			if b.center.Receive(n) {
				b.post(notificationMsg{n: n})
			}
		})
	}()
}

// detach marks the background stopped and returns a func that cancels its
// jobs and waits for them. The wait must not run on the UI goroutine while
// the program is live, since jobs block in Send.
func (b *background) detach() func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return func() {}
	}
	cancel, wg := b.cancel, b.wg
	b.running = false
	return func() {
		cancel()
		wg.Wait()
	}
}

func (b *background) stop() { b.detach()() }

func (b *background) cache() {
	if b.history == nil {
		return
	}
	if _, err := b.history.Save(b.registry.Finished()); err != nil {
		util.Warn("tui: history cache: %v", err)
	}
}

func (b *background) saveTask(t model.Task) {
	if b.history == nil {
		return
	}
	if _, err := b.history.Save([]model.Task{t}); err != nil {
		util.Warn("tui: history cache: %v", err)
	}
}

func (b *background) watchPipeline(id string) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	post := func(st model.PipelineStatus) { b.post(pipelineStatusMsg{status: st}) }
	b.watcher.WatchPipeline(ctx, id, b.client, post, post)
}

// appModel is the root bubbletea model.
type appModel struct {
	ctx  context.Context
	opts Options
	bg   *background
	acc  *stream.Accumulator

	screen   screen
	previous screen

	login   *LoginForm
	dash    *Dashboard
	output  *OutputView
	pipe    *PipelineView
	graph   *GraphView
	notices *NotificationsView
	run     *RunForm

	spinner  spinner.Model
	verified bool
	width    int
	height   int
	notice   string
}

func newAppModel(ctx context.Context, opts Options) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	bg := newBackground(ctx, opts)
	acc := stream.New(opts.Client)

	m := appModel{
		ctx:     ctx,
		opts:    opts,
		bg:      bg,
		acc:     acc,
		screen:  screenLogin,
		login:   NewLoginForm(),
		dash:    NewDashboard(&DashboardData{Server: opts.Client.BaseURL()}, 80, 24),
		output:  NewOutputView(acc, opts.Client, os.Stderr),
		pipe:    NewPipelineView(opts.Client),
		graph:   NewGraphView(opts.Client, os.Stderr),
		notices: NewNotificationsView(bg.center),
		run:     NewRunForm(opts.Client),
		spinner: s,
	}
	m.output.SetPoller(bg.watcher, bg.post)
	if !opts.Session.Authenticated() {
		m.verified = true
	}
	return m
}

func (m appModel) shutdown() {
	m.bg.stop()
	m.bg.watcher.Stop()
	_ = m.acc.Close()
}

// Init initializes the model.
func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, toastTick()}
	if m.opts.Session.Authenticated() {
		cmds = append(cmds, m.verify())
	}
	return tea.Batch(cmds...)
}

func toastTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return toastTickMsg{} })
}

func (m appModel) verify() tea.Cmd {
	ctx, client, sess := m.ctx, m.opts.Client, m.opts.Session
	return func() tea.Msg {
		ok, err := sess.Verify(ctx, client)
		return verifiedMsg{ok: ok, err: err}
	}
}

func (m appModel) submitLogin(username, password string, register bool) tea.Cmd {
	ctx, client, sess := m.ctx, m.opts.Client, m.opts.Session
	return func() tea.Msg {
		if register {
			return loginMsg{err: sess.Register(ctx, client, username, password)}
		}
		return loginMsg{err: sess.Login(ctx, client, username, password)}
	}
}

func (m *appModel) enterDashboard() tea.Cmd {
	m.screen = screenDashboard
	m.refreshDashboard()
	bg, ctx := m.bg, m.ctx
	return tea.Batch(
		func() tea.Msg { bg.start(ctx); return nil },
		m.graph.Load(m.ctx),
	)
}

func (m *appModel) refreshDashboard() {
	data := &DashboardData{
		Server:    m.opts.Client.BaseURL(),
		User:      m.opts.Session.User(),
		ProjectID: m.opts.Session.ProjectID(),
		Running:   m.bg.registry.Running(),
		Finished:  m.bg.registry.Finished(),
		Unread:    m.bg.center.Feed.Unread(),
		Updated:   m.bg.registry.Updated(),
	}
	if m.opts.History != nil {
		if n, err := m.opts.History.Count(); err == nil {
			data.Cached = n
		}
	}
	m.dash.SetData(data)
}

func (m *appModel) setSize(width, height int) {
	m.width, m.height = width, height
	m.dash.SetSize(width, height)
	m.output.SetSize(width, height-4)
}

// editing reports whether a text field owns the keyboard.
func (m appModel) editing() bool {
	return m.screen == screenLogin ||
		(m.screen == screenPipeline && m.pipe.Editing()) ||
		(m.screen == screenRun && m.run.Editing())
}

func (m *appModel) switchTo(s screen) {
	if m.screen == screenOutput && s != screenOutput {
		m.output.Leave()
	}
	if s != m.screen {
		m.previous = m.screen
	}
	m.screen = s
}

// Update handles messages.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case toastTickMsg:
		m.bg.center.Toasts.Active()
		return m, toastTick()

	case verifiedMsg:
		m.verified = true
		switch {
		case msg.ok:
			return m, m.enterDashboard()
		case msg.err != nil && !api.IsAuth(msg.err):
			// offline: keep the stored token and try again later
			m.notice = "backend unreachable: " + msg.err.Error()
			return m, m.enterDashboard()
		default:
			m.screen = screenLogin
			return m, nil
		}

	case loginMsg:
		if msg.err != nil {
			m.login.SetError(msg.err)
			return m, nil
		}
		m.login = NewLoginForm()
		m.notice = "signed in as " + m.opts.Session.User().Username
		return m, m.enterDashboard()

	case registryMsg, feedMsg, notificationMsg:
		m.refreshDashboard()
		return m, nil

	case noticeMsg:
		m.notice = string(msg)
		return m, nil

	case openTaskMsg:
		return m, m.fetchTask(msg.taskID)

	case taskMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
			return m, nil
		}
		if !msg.open {
			m.output.SetTask(*msg.task)
			if msg.task.Status.IsTerminal() {
				m.bg.saveTask(*msg.task)
			}
			return m, nil
		}
		m.switchTo(screenOutput)
		if !msg.task.Status.IsTerminal() {
			return m, m.output.OpenLive(m.ctx, *msg.task)
		}
		m.output.OpenTask(*msg.task)
		return m, nil

	case outputMsg, streamMsg:
		return m, m.output.Update(m.ctx, msg)

	case pipelineStartedMsg:
		cmd := m.pipe.Update(m.ctx, m.opts.Session.ProjectID(), msg)
		if msg.err == nil {
			m.bg.watchPipeline(msg.id)
			m.notice = "pipeline " + msg.id + " started"
		}
		return m, cmd

	case pipelineStatusMsg:
		return m, m.pipe.Update(m.ctx, m.opts.Session.ProjectID(), msg)

	case runStartedMsg:
		cmd := m.run.Update(m.ctx, m.opts.Session.ProjectID(), msg)
		if msg.err == nil {
			m.notice = msg.tool + " started as task " + msg.res.TaskID
		}
		return m, cmd

	case targetsMsg, graphMsg:
		return m, m.graph.Update(m.ctx, m.opts.Session.ProjectID(), msg)

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m appModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.screen == screenLogin {
		if !m.verified {
			return m, nil
		}
		return m, m.login.Update(msg, m.submitLogin)
	}

	if !m.editing() {
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "L":
			return m.logout()
		case "esc":
			return m.back()
		}
		for _, s := range screenNames {
			if msg.String() == s.key {
				m.switchTo(s.screen)
				if s.screen == screenGraph {
					return m, m.graph.Load(m.ctx)
				}
				return m, nil
			}
		}
	}

	pid := m.opts.Session.ProjectID()
	switch m.screen {
	case screenDashboard:
		return m, m.updateDashboard(msg)
	case screenOutput:
		return m, m.output.Update(m.ctx, msg)
	case screenPipeline:
		return m, m.pipe.Update(m.ctx, pid, msg)
	case screenGraph:
		return m, m.graph.Update(m.ctx, pid, msg)
	case screenNotifications:
		return m, m.notices.Update(m.ctx, msg)
	case screenRun:
		return m, m.run.Update(m.ctx, pid, msg)
	}
	return m, nil
}

func (m appModel) back() (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenOutput:
		prev := m.previous
		if prev == screenOutput || prev == screenLogin {
			prev = screenDashboard
		}
		m.switchTo(prev)
	case screenGraph:
		if !m.graph.Back() {
			m.switchTo(screenDashboard)
		}
	default:
		m.switchTo(screenDashboard)
	}
	return m, nil
}

func (m appModel) logout() (tea.Model, tea.Cmd) {
	halt := m.bg.detach()
	m.output.Leave()
	if err := m.opts.Session.Logout(); err != nil {
		m.notice = err.Error()
	} else {
		m.notice = "signed out"
	}
	m.screen = screenLogin
	return m, func() tea.Msg { halt(); return nil }
}

func (m appModel) updateDashboard(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j", "down":
		m.dash.Move(1)
	case "k", "up":
		m.dash.Move(-1)
	case "enter":
		if t, ok := m.dash.Selected(); ok {
			return m.fetchTask(t.ID)
		}
	case "r":
		ctx, reg := m.ctx, m.bg.registry
		return func() tea.Msg {
			if err := reg.Refresh(ctx); err != nil {
				return noticeMsg(err.Error())
			}
			return registryMsg{}
		}
	case "x":
		t, ok := m.dash.Selected()
		if !ok || t.Status.IsTerminal() {
			return nil
		}
		ctx, client := m.ctx, m.opts.Client
		return func() tea.Msg {
			if _, err := client.Kill(ctx, t.ID); err != nil {
				return noticeMsg(err.Error())
			}
			return noticeMsg("kill sent to " + t.ID)
		}
	}
	return nil
}

// fetchTask loads a task, preferring the local history cache for finished
// runs.
func (m appModel) fetchTask(id string) tea.Cmd {
	ctx, client, history := m.ctx, m.opts.Client, m.opts.History
	return func() tea.Msg {
		if history != nil {
			if t, err := history.Get(id); err == nil && t != nil {
				return taskMsg{task: t, open: true}
			}
		}
		t, err := client.Status(ctx, id)
		if err != nil && api.IsNotFound(err) {
			err = fmt.Errorf("task %s: %w", id, err)
		}
		return taskMsg{task: t, err: err, open: true}
	}
}

// View renders the UI.
func (m appModel) View() string {
	if !m.verified {
		return LoadingStyle.Render(m.spinner.View() + " Checking session...")
	}

	var body string
	switch m.screen {
	case screenLogin:
		body = m.login.View(m.width)
	case screenDashboard:
		body = m.dash.View()
	case screenOutput:
		body = m.output.View()
	case screenPipeline:
		body = m.pipe.View(m.width)
	case screenGraph:
		body = m.graph.View(m.width)
	case screenNotifications:
		body = m.notices.View(m.width)
	case screenRun:
		body = m.run.View(m.height)
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n\n")
	sb.WriteString(body)
	if toasts := renderToasts(m.bg.center.Toasts.Active()); toasts != "" && m.screen != screenLogin {
		sb.WriteString("\n" + toasts)
	}
	if m.notice != "" {
		sb.WriteString("\n" + DimStyle.Render(m.notice))
	}
	return sb.String()
}

func (m appModel) header() string {
	title := HeaderStyle.Render("Sawlah")
	if m.screen == screenLogin {
		return title
	}

	tabs := []string{title}
	for _, s := range screenNames {
		label := fmt.Sprintf("%s %s", s.key, s.label)
		if s.screen == m.screen {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}
	if badge := notify.Badge(m.bg.center.Feed.Unread()); badge != "" {
		tabs = append(tabs, BadgeStyle.Render("🔔 "+badge))
	}
	if running := len(m.bg.registry.Running()); running > 0 {
		tabs = append(tabs, WarningStyle.Render(fmt.Sprintf(" %d running", running)))
	}
	user := m.opts.Session.User()
	tabs = append(tabs, DimStyle.Render("  "+user.Username))
	return lipgloss.JoinHorizontal(lipgloss.Center, tabs...)
}

// ErrNoSession is returned when the UI is started without a session.
var ErrNoSession = errors.New("tui: no session")

// Validate checks that the options can drive the UI.
func (o Options) Validate() error {
	if o.Client == nil || o.Session == nil || o.Config == nil {
		return ErrNoSession
	}
	return nil
}
