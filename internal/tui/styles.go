package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
)

var (
	// Colors
	Primary   = lipgloss.Color("205")
	Secondary = lipgloss.Color("86")
	Subtle    = lipgloss.Color("241")
	Success   = lipgloss.Color("46")
	Warning   = lipgloss.Color("214")
	Error     = lipgloss.Color("196")
	Info      = lipgloss.Color("39")
	Critical  = lipgloss.Color("201")

	// Header styles
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(Primary).
			Padding(0, 2)

	TabStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Padding(0, 1)

	ActiveTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(Subtle).
			Padding(0, 1)

	// Section styles
	SectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(0, 1)

	SectionTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Primary)

	// Label and value styles
	LabelStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Width(14)

	ValueStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	// Status styles
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			Italic(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Subtle).
			MarginTop(1)

	LoadingStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Padding(2, 4)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("236")).
			Bold(true)

	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(48)

	BadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(Error).
			Padding(0, 1)

	LineNumberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))
)

var lineStyles = map[classify.Style]lipgloss.Style{
	classify.Neutral:  lipgloss.NewStyle(),
	classify.Critical: lipgloss.NewStyle().Foreground(Critical).Bold(true),
	classify.Success:  lipgloss.NewStyle().Foreground(Success),
	classify.Error:    lipgloss.NewStyle().Foreground(Error),
	classify.Warning:  lipgloss.NewStyle().Foreground(Warning),
	classify.Muted:    lipgloss.NewStyle().Foreground(Subtle),
	classify.Info:     lipgloss.NewStyle().Foreground(Info),
	classify.Preamble: lipgloss.NewStyle().Foreground(Secondary).Bold(true),
}

// LineStyle returns the terminal style of a classified line.
func LineStyle(s classify.Style) lipgloss.Style {
	if st, ok := lineStyles[s]; ok {
		return st
	}
	return lineStyles[classify.Neutral]
}

// RenderLines renders numbered, colored output.
func RenderLines(text string) string {
	lines := classify.Lines(text)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = LineNumberStyle.Render(fmt.Sprintf("%4d ", l.Number)) + LineStyle(l.Style).Render(l.Text)
	}
	return strings.Join(out, "\n")
}

// RenderStatus returns a styled status indicator.
func RenderStatus(ok bool, okText, failText string) string {
	if ok {
		return SuccessStyle.Render("✓ " + okText)
	}
	return ErrorStyle.Render("✗ " + failText)
}

// StatusBadge renders a task status.
func StatusBadge(s model.TaskStatus) string {
	label := s.Label()
	switch s {
	case model.StatusCompleted:
		return SuccessStyle.Render("● " + label)
	case model.StatusRunning:
		return lipgloss.NewStyle().Foreground(Info).Render("◐ " + label)
	case model.StatusError:
		return ErrorStyle.Render("✗ " + label)
	case model.StatusKilled:
		return WarningStyle.Render("■ " + label)
	default:
		return DimStyle.Render("○ " + label)
	}
}

// SeverityStyle colors a notification by severity.
func SeverityStyle(s model.Severity) lipgloss.Style {
	switch s {
	case model.SeveritySuccess:
		return SuccessStyle
	case model.SeverityError:
		return ErrorStyle
	case model.SeverityWarning:
		return WarningStyle
	default:
		return lipgloss.NewStyle().Foreground(Info)
	}
}

// RenderBar renders a progress bar.
func RenderBar(value, max int, width int) string {
	if max == 0 {
		max = 1
	}

	filled := int(float64(value) / float64(max) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(Secondary).Render(bar)
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
