package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/sawlah/internal/model"
	"github.com/user/sawlah/internal/tools"
)

// RunBackend starts typed tool runs.
type RunBackend interface {
	Run(ctx context.Context, p tools.Params, projectID int64) (*model.RunResult, error)
}

type runStartedMsg struct {
	tool string
	res  *model.RunResult
	err  error
}

// RunForm picks a tool and submits its parameters as key=value pairs.
type RunForm struct {
	backend RunBackend
	names   []string
	cursor  int
	input   textinput.Model
	editing bool
	busy    bool
	err     error
}

// NewRunForm creates the form over every runnable tool.
func NewRunForm(backend RunBackend) *RunForm {
	in := textinput.New()
	in.Placeholder = "target=10.0.0.5 scan_type=service"
	in.CharLimit = 1024
	return &RunForm{backend: backend, names: tools.Names(), input: in}
}

// Editing reports whether the parameter field owns the keyboard.
func (f *RunForm) Editing() bool { return f.editing }

// Tool returns the selected tool name.
func (f *RunForm) Tool() string { return f.names[f.cursor] }

// Err returns the last validation or submission error.
func (f *RunForm) Err() error { return f.err }

// Params decodes the parameter field for the selected tool.
func (f *RunForm) Params() (tools.Params, error) {
	values, err := tools.ParsePairs(strings.Fields(f.input.Value()))
	if err != nil {
		return nil, err
	}
	p, err := tools.Decode(f.Tool(), values)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Update handles keys and the submission result.
func (f *RunForm) Update(ctx context.Context, projectID int64, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case runStartedMsg:
		f.busy = false
		f.err = msg.err
		if msg.err != nil {
			return nil
		}
		f.input.SetValue("")
		t := model.Task{ID: msg.res.TaskID, ToolName: msg.tool, Command: msg.res.Command, Status: model.StatusPending}
		return func() tea.Msg { return taskMsg{task: &t, open: true} }

	case tea.KeyMsg:
		if f.editing {
			switch msg.String() {
			case "esc":
				f.editing = false
				f.input.Blur()
				return nil
			case "enter":
				return f.submit(ctx, projectID)
			}
			var cmd tea.Cmd
			f.input, cmd = f.input.Update(msg)
			return cmd
		}

		switch msg.String() {
		case "j", "down":
			f.cursor = clampIndex(f.cursor+1, len(f.names))
		case "k", "up":
			f.cursor = clampIndex(f.cursor-1, len(f.names))
		case "enter", "i", "tab":
			f.editing = true
			f.err = nil
			return f.input.Focus()
		}
	}
	return nil
}

func (f *RunForm) submit(ctx context.Context, projectID int64) tea.Cmd {
	if f.busy {
		return nil
	}
	p, err := f.Params()
	if err != nil {
		f.err = err
		return nil
	}
	f.err = nil
	f.busy = true
	f.editing = false
	f.input.Blur()

	backend, tool := f.backend, f.Tool()
	return func() tea.Msg {
		res, err := backend.Run(ctx, p, projectID)
		return runStartedMsg{tool: tool, res: res, err: err}
	}
}

// View renders the tool list and the parameter field.
func (f *RunForm) View(height int) string {
	rows := max(height-10, 5)
	start := 0
	if f.cursor >= rows {
		start = f.cursor - rows + 1
	}
	end := min(start+rows, len(f.names))

	var list []string
	for i := start; i < end; i++ {
		if i == f.cursor {
			list = append(list, SelectedStyle.Render("> "+f.names[i]))
		} else {
			list = append(list, "  "+f.names[i])
		}
	}

	var sb strings.Builder
	sb.WriteString(SectionStyle.Render(SectionTitleStyle.Render("Tools") + "\n" + strings.Join(list, "\n")))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Tool:"), ValueStyle.Render(f.Tool())))
	sb.WriteString(f.input.View() + "\n")
	if f.busy {
		sb.WriteString(LoadingStyle.Render("submitting...") + "\n")
	}
	if f.err != nil {
		sb.WriteString(ErrorStyle.Render(f.err.Error()) + "\n")
	}
	help := "j/k select tool • enter edit parameters • esc back"
	if f.editing {
		help = "key=value pairs separated by spaces • enter run • esc stop editing"
	}
	sb.WriteString(HelpStyle.Render(help))
	return sb.String()
}
