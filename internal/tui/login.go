package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/user/sawlah/internal/session"
)

// LoginForm is the auth gate shown while no token is held.
type LoginForm struct {
	inputs   []textinput.Model
	focus    int
	register bool
	busy     bool
	err      error
}

// NewLoginForm creates the form with the username focused.
func NewLoginForm() *LoginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128

	return &LoginForm{inputs: []textinput.Model{user, pass}}
}

// Values returns the trimmed username and the password.
func (f *LoginForm) Values() (string, string) {
	return strings.TrimSpace(f.inputs[0].Value()), f.inputs[1].Value()
}

// Register reports whether the form creates an account instead.
func (f *LoginForm) Register() bool { return f.register }

// SetError shows err and re-enables the form.
func (f *LoginForm) SetError(err error) {
	f.err = err
	f.busy = false
}

func (f *LoginForm) setFocus(i int) {
	f.focus = (i + len(f.inputs)) % len(f.inputs)
	for j := range f.inputs {
		if j == f.focus {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

// Update handles keys. submit is called with the form values on enter.
func (f *LoginForm) Update(msg tea.Msg, submit func(username, password string, register bool) tea.Cmd) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.setFocus(f.focus + 1)
			return nil
		case "shift+tab", "up":
			f.setFocus(f.focus - 1)
			return nil
		case "ctrl+r":
			f.register = !f.register
			f.err = nil
			return nil
		case "enter":
			if f.busy {
				return nil
			}
			u, p := f.Values()
			if u == "" || p == "" {
				f.setFocus(0)
				if u != "" {
					f.setFocus(1)
				}
				return nil
			}
			f.busy = true
			f.err = nil
			return submit(u, p, f.register)
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// View renders the form.
func (f *LoginForm) View(width int) string {
	title := "Sign in"
	if f.register {
		title = "Create account"
	}

	var sb strings.Builder
	sb.WriteString(SectionTitleStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString(LabelStyle.Render("Username:") + " " + f.inputs[0].View() + "\n")
	sb.WriteString(LabelStyle.Render("Password:") + " " + f.inputs[1].View() + "\n\n")

	switch {
	case f.busy:
		sb.WriteString(DimStyle.Render("authenticating..."))
	case f.err != nil:
		sb.WriteString(ErrorStyle.Render(f.err.Error()))
	default:
		sb.WriteString(DimStyle.Render(session.DefaultHint))
	}
	sb.WriteString("\n")
	sb.WriteString(HelpStyle.Render("enter submit • tab next field • ctrl+r toggle register • ctrl+c quit"))

	w := width - 4
	if w < 40 {
		w = 40
	}
	if w > 70 {
		w = 70
	}
	return SectionStyle.Width(w).Render(sb.String())
}
