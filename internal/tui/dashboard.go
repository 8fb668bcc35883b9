package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/notify"
)

// DashboardData holds data for the dashboard view.
type DashboardData struct {
	Server    string
	User      model.User
	ProjectID int64
	Running   []model.Task
	Finished  []model.Task
	Unread    int
	Updated   time.Time
	Cached    int
}

// Tasks returns running tasks first, then finished ones.
func (d *DashboardData) Tasks() []model.Task {
	out := make([]model.Task, 0, len(d.Running)+len(d.Finished))
	out = append(out, d.Running...)
	return append(out, d.Finished...)
}

// Dashboard is the main dashboard view.
type Dashboard struct {
	data   *DashboardData
	cursor int
	width  int
	height int
}

const maxDashboardTasks = 12

// NewDashboard creates a new dashboard.
func NewDashboard(data *DashboardData, width, height int) *Dashboard {
	return &Dashboard{
		data:   data,
		width:  width,
		height: height,
	}
}

// SetData replaces the shown data, keeping the cursor in range.
func (d *Dashboard) SetData(data *DashboardData) {
	d.data = data
	d.clamp()
}

// SetSize updates the dashboard size.
func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

// Move shifts the task cursor by delta.
func (d *Dashboard) Move(delta int) {
	d.cursor += delta
	d.clamp()
}

func (d *Dashboard) clamp() {
	n := len(d.data.Tasks())
	if n > maxDashboardTasks {
		n = maxDashboardTasks
	}
	if d.cursor >= n {
		d.cursor = n - 1
	}
	if d.cursor < 0 {
		d.cursor = 0
	}
}

// Selected returns the task under the cursor.
func (d *Dashboard) Selected() (model.Task, bool) {
	tasks := d.data.Tasks()
	if d.cursor < len(tasks) {
		return tasks[d.cursor], true
	}
	return model.Task{}, false
}

// View renders the dashboard.
func (d *Dashboard) View() string {
	var sb strings.Builder
	sb.WriteString(d.renderSessionSection())
	sb.WriteString("\n")
	sb.WriteString(d.renderStatsSection())
	sb.WriteString("\n")
	sb.WriteString(d.renderTasksSection())
	sb.WriteString("\n")
	sb.WriteString(HelpStyle.Render("j/k move • enter open output • x kill • r refresh • p pipelines • g map • n notifications • q quit"))
	return sb.String()
}

func (d *Dashboard) sectionWidth() int {
	w := d.width - 4
	if w < 40 {
		w = 40
	}
	return w
}

func (d *Dashboard) renderSessionSection() string {
	project := "none"
	if d.data.ProjectID != 0 {
		project = fmt.Sprintf("#%d", d.data.ProjectID)
	}
	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Server:"),
		ValueStyle.Render(d.data.Server),
		LabelStyle.Render("Operator:"),
		ValueStyle.Render(fmt.Sprintf("%s (%s)", d.data.User.Username, d.data.User.Role)),
		LabelStyle.Render("Project:"),
		ValueStyle.Render(project),
	)
	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Session") + "\n" + content)
}

func (d *Dashboard) renderStatsSection() string {
	updated := "never"
	if !d.data.Updated.IsZero() {
		updated = d.data.Updated.Format("15:04:05")
	}
	bell := "0"
	if b := notify.Badge(d.data.Unread); b != "" {
		bell = BadgeStyle.Render(b)
	}
	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s\n%s %s\n%s %s",
		LabelStyle.Render("Running:"),
		ValueStyle.Render(fmt.Sprintf("%d", len(d.data.Running))),
		LabelStyle.Render("Completed:"),
		ValueStyle.Render(fmt.Sprintf("%d", len(d.data.Finished))),
		LabelStyle.Render("Unread:"),
		bell,
		LabelStyle.Render("Cached runs:"),
		ValueStyle.Render(fmt.Sprintf("%d", d.data.Cached)),
		LabelStyle.Render("Updated:"),
		DimStyle.Render(updated),
	)
	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Background tasks") + "\n" + content)
}

func (d *Dashboard) renderTasksSection() string {
	tasks := d.data.Tasks()
	if len(tasks) == 0 {
		return SectionStyle.Width(d.sectionWidth()).Render(
			SectionTitleStyle.Render("Tasks") + "\n" + DimStyle.Render("No tasks yet"))
	}

	rows := []string{
		fmt.Sprintf("  %-10s %-14s %-14s %s", "ID", "Tool", "Status", "Command"),
		"  " + strings.Repeat("─", 60),
	}

	shown := tasks
	if len(shown) > maxDashboardTasks {
		shown = shown[:maxDashboardTasks]
	}
	cmdWidth := d.sectionWidth() - 46
	for i, t := range shown {
		row := fmt.Sprintf("%-10s %-14s %-14s %s", t.ID, truncate(t.ToolName, 14), t.Status.Label(),
			truncate(t.Command, cmdWidth))
		if i == d.cursor {
			rows = append(rows, SelectedStyle.Render("> "+row))
		} else {
			rows = append(rows, "  "+row)
		}
	}
	if len(tasks) > len(shown) {
		rows = append(rows, DimStyle.Render(fmt.Sprintf("  ... and %d more", len(tasks)-len(shown))))
	}

	return SectionStyle.Width(d.sectionWidth()).Render(
		SectionTitleStyle.Render("Tasks") + "\n" + strings.Join(rows, "\n"))
}
