package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/report"
	"github.com/user/sawlah/internal/topology"
)

// GraphBackend is the part of the API the map view talks to.
type GraphBackend interface {
	MapTargets(ctx context.Context) ([]model.Summary, error)
	Graph(ctx context.Context, target string) (*model.Graph, error)
	AutoScan(ctx context.Context, target string, projectID int64) (*model.RunResult, error)
	Status(ctx context.Context, taskID string) (*model.Task, error)
}

type graphLevel int

const (
	levelTargets graphLevel = iota
	levelNodes
	levelPanel
)

// GraphView browses targets, their topology nodes and the scans behind
// each node.
type GraphView struct {
	backend GraphBackend
	clip    io.Writer

	level   graphLevel
	targets []model.Summary
	target  int
	graph   *model.Graph
	node    int
	panel   *topology.DetailPanel
	scan    int

	loading bool
	notice  string
	err     error
}

// NewGraphView creates the view.
func NewGraphView(backend GraphBackend, clip io.Writer) *GraphView {
	return &GraphView{backend: backend, clip: clip}
}

// Load fetches the target list.
func (v *GraphView) Load(ctx context.Context) tea.Cmd {
	v.loading = true
	return func() tea.Msg {
		targets, err := v.backend.MapTargets(ctx)
		return targetsMsg{targets: targets, err: err}
	}
}

// Back leaves the innermost level. It returns false at the top level.
func (v *GraphView) Back() bool {
	switch v.level {
	case levelPanel:
		v.panel.Close()
		v.panel = nil
		v.level = levelNodes
		return true
	case levelNodes:
		v.graph = nil
		v.level = levelTargets
		return true
	}
	return false
}

// Panel returns the open detail panel, if any.
func (v *GraphView) Panel() *topology.DetailPanel { return v.panel }

// Update handles keys and map messages.
func (v *GraphView) Update(ctx context.Context, projectID int64, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case targetsMsg:
		v.loading = false
		v.err = msg.err
		if msg.err == nil {
			v.targets = msg.targets
			v.target = clampIndex(v.target, len(v.targets))
		}
		return nil

	case graphMsg:
		v.loading = false
		v.err = msg.err
		if msg.err == nil {
			v.graph = msg.graph
			v.node = 0
			v.level = levelNodes
		}
		return nil

	case tea.KeyMsg:
		switch v.level {
		case levelTargets:
			return v.updateTargets(ctx, projectID, msg)
		case levelNodes:
			return v.updateNodes(msg)
		case levelPanel:
			return v.updatePanel(ctx, msg)
		}
	}
	return nil
}

func (v *GraphView) updateTargets(ctx context.Context, projectID int64, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "j", "down":
		v.target = clampIndex(v.target+1, len(v.targets))
	case "k", "up":
		v.target = clampIndex(v.target-1, len(v.targets))
	case "r":
		return v.Load(ctx)
	case "enter":
		if v.target >= len(v.targets) {
			return nil
		}
		name := v.targets[v.target].Target
		v.loading = true
		return func() tea.Msg {
			g, err := v.backend.Graph(ctx, name)
			return graphMsg{graph: g, err: err}
		}
	case "a":
		if v.target >= len(v.targets) {
			return nil
		}
		name := v.targets[v.target].Target
		return func() tea.Msg {
			res, err := v.backend.AutoScan(ctx, name, projectID)
			if err != nil {
				return noticeMsg(err.Error())
			}
			return noticeMsg("auto-scan started as task " + res.TaskID)
		}
	}
	return nil
}

func (v *GraphView) updateNodes(msg tea.KeyMsg) tea.Cmd {
	if v.graph == nil {
		return nil
	}
	switch msg.String() {
	case "j", "down":
		v.node = clampIndex(v.node+1, len(v.graph.Nodes))
	case "k", "up":
		v.node = clampIndex(v.node-1, len(v.graph.Nodes))
	case "enter":
		if v.node < len(v.graph.Nodes) {
			v.panel = topology.Open(v.graph.Nodes[v.node], v.graph.ScanDetails(), v.backend)
			v.scan = 0
			v.level = levelPanel
		}
	case "m":
		if _, err := osc52.New(report.Mermaid(*v.graph)).WriteTo(v.clip); err != nil {
			v.notice = "copy failed: " + err.Error()
		} else {
			v.notice = "mermaid diagram copied"
		}
	}
	return nil
}

func (v *GraphView) updatePanel(ctx context.Context, msg tea.KeyMsg) tea.Cmd {
	p := v.panel
	switch msg.String() {
	case "j", "down":
		v.scan = clampIndex(v.scan+1, len(p.Scans))
	case "k", "up":
		v.scan = clampIndex(v.scan-1, len(p.Scans))
	case "enter":
		if v.scan >= len(p.Scans) {
			return nil
		}
		scan := p.Scans[v.scan]
		return func() tea.Msg {
			t, err := p.Load(ctx, scan)
			if t != nil && t.ID == "" {
				t.ID = scan.TaskID
			}
			return taskMsg{task: t, err: err, open: true}
		}
	}
	return nil
}

// View renders the current level.
func (v *GraphView) View(width int) string {
	var body string
	switch v.level {
	case levelTargets:
		body = v.viewTargets()
	case levelNodes:
		body = v.viewNodes()
	case levelPanel:
		body = joinHorizontal(v.viewNodes(), v.viewPanel(width/2))
	}

	var sb strings.Builder
	sb.WriteString(body)
	sb.WriteString("\n")
	if v.loading {
		sb.WriteString(DimStyle.Render("loading...") + "\n")
	}
	if v.err != nil {
		sb.WriteString(ErrorStyle.Render(v.err.Error()) + "\n")
	}
	if v.notice != "" {
		sb.WriteString(WarningStyle.Render(v.notice) + "\n")
	}

	help := "j/k move • enter open graph • a auto-scan • r refresh • esc back"
	switch v.level {
	case levelNodes:
		help = "j/k move • enter node details • m copy mermaid • esc back"
	case levelPanel:
		help = "j/k move • enter load scan output • esc close panel"
	}
	sb.WriteString(HelpStyle.Render(help))
	return sb.String()
}

func (v *GraphView) viewTargets() string {
	if len(v.targets) == 0 {
		return SectionStyle.Render(SectionTitleStyle.Render("Targets") + "\n" + DimStyle.Render("No scanned targets yet"))
	}
	rows := []string{fmt.Sprintf("  %-28s %6s %6s %6s %6s", "Target", "Ports", "Subs", "Dirs", "Scans")}
	for i, t := range v.targets {
		row := fmt.Sprintf("%-28s %6d %6d %6d %6d", truncate(t.Target, 28),
			len(t.Ports), len(t.Subdomains), len(t.Directories), len(t.Scans))
		if i == v.target {
			rows = append(rows, SelectedStyle.Render("> "+row))
		} else {
			rows = append(rows, "  "+row)
		}
	}
	return SectionStyle.Render(SectionTitleStyle.Render("Targets") + "\n" + strings.Join(rows, "\n"))
}

func (v *GraphView) viewNodes() string {
	if v.graph == nil {
		return ""
	}
	rows := make([]string, 0, len(v.graph.Nodes))
	for i, n := range v.graph.Nodes {
		row := fmt.Sprintf("%-12s %s", topology.TypeLabel(n.Type), truncate(n.Label(), 40))
		if i == v.node {
			rows = append(rows, SelectedStyle.Render("> "+row))
		} else {
			rows = append(rows, "  "+row)
		}
	}
	title := fmt.Sprintf("%s (%d nodes, %d edges)", v.graph.Target, len(v.graph.Nodes), len(v.graph.Edges))
	return SectionStyle.Render(SectionTitleStyle.Render(title) + "\n" + strings.Join(rows, "\n"))
}

func (v *GraphView) viewPanel(width int) string {
	p := v.panel
	var sb strings.Builder
	for _, r := range p.Rows {
		sb.WriteString(LabelStyle.Render(r.Label+":") + " " + LineStyle(r.Style).Render(truncate(r.Value, width-18)) + "\n")
	}
	sb.WriteString("\n" + SectionTitleStyle.Render("Related scans") + "\n")
	if len(p.Scans) == 0 {
		sb.WriteString(DimStyle.Render("none"))
	}
	for i, s := range p.Scans {
		cached := ""
		if p.Cached(s.TaskID) {
			cached = " ✓"
		}
		row := fmt.Sprintf("%-12s %-10s %s%s", s.Tool, s.Status, s.StartedAt.Format("01-02 15:04"), cached)
		if i == v.scan {
			sb.WriteString(SelectedStyle.Render("> "+row) + "\n")
		} else {
			sb.WriteString("  " + row + "\n")
		}
	}
	return SectionStyle.Render(SectionTitleStyle.Render(p.Title()) + "\n" + sb.String())
}

func joinHorizontal(left, right string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func clampIndex(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
