package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/sawlah/internal/notify"
)

// NotificationsView lists the feed and marks entries read.
type NotificationsView struct {
	center *notify.Center
	cursor int
}

// NewNotificationsView creates the view over center.
func NewNotificationsView(center *notify.Center) *NotificationsView {
	return &NotificationsView{center: center}
}

// Update handles keys.
func (v *NotificationsView) Update(ctx context.Context, msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	items := v.center.Feed.Items()
	switch key.String() {
	case "j", "down":
		v.cursor = clampIndex(v.cursor+1, len(items))
	case "k", "up":
		v.cursor = clampIndex(v.cursor-1, len(items))
	case "r":
		return func() tea.Msg {
			if err := v.center.Refresh(ctx); err != nil {
				return noticeMsg(err.Error())
			}
			return feedMsg{}
		}
	case "enter", " ":
		if v.cursor >= len(items) {
			return nil
		}
		n := items[v.cursor]
		return func() tea.Msg {
			if !n.Read {
				if err := v.center.MarkRead(ctx, n.ID); err != nil {
					return noticeMsg(err.Error())
				}
			}
			if n.TaskID != "" {
				return openTaskMsg{taskID: n.TaskID}
			}
			return feedMsg{}
		}
	case "R":
		return func() tea.Msg {
			if err := v.center.MarkAllRead(ctx); err != nil {
				return noticeMsg(err.Error())
			}
			return feedMsg{}
		}
	}
	return nil
}

// View renders the feed.
func (v *NotificationsView) View(width int) string {
	items := v.center.Feed.Items()
	title := fmt.Sprintf("Notifications (%d unread)", v.center.Feed.Unread())
	if len(items) == 0 {
		return SectionStyle.Render(SectionTitleStyle.Render(title)+"\n"+DimStyle.Render("Nothing yet")) +
			"\n" + HelpStyle.Render("r refresh • esc back")
	}

	rows := make([]string, 0, len(items))
	for i, n := range items {
		dot := "  "
		if !n.Read {
			dot = SeverityStyle(n.Severity).Render("● ")
		}
		row := fmt.Sprintf("%s %-28s %s", n.Timestamp.Local().Format("01-02 15:04"),
			truncate(n.Title, 28), truncate(n.Message, width-50))
		if i == v.cursor {
			rows = append(rows, SelectedStyle.Render("> "+dot+row))
		} else {
			rows = append(rows, "  "+dot+row)
		}
	}
	return SectionStyle.Render(SectionTitleStyle.Render(title)+"\n"+strings.Join(rows, "\n")) +
		"\n" + HelpStyle.Render("j/k move • enter mark read and open task • R mark all read • r refresh • esc back")
}

// renderToasts stacks the active popups.
func renderToasts(toasts []notify.Toast) string {
	if len(toasts) == 0 {
		return ""
	}
	out := make([]string, 0, len(toasts))
	for _, t := range toasts {
		style := SeverityStyle(t.Severity)
		body := style.Render(t.Title)
		if t.Message != "" {
			body += "\n" + truncate(t.Message, 44)
		}
		out = append(out, ToastStyle.BorderForeground(style.GetForeground()).Render(body))
	}
	return strings.Join(out, "\n")
}
