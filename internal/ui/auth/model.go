// Package auth holds the login and register screens.
package auth

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/theme"
)

// LoginSubmittedMsg is sent when the login form is completed.
type LoginSubmittedMsg struct {
	Email    string
	Password string
}

// RegisterSubmittedMsg is sent when the register form is completed.
type RegisterSubmittedMsg struct {
	Username string
	Email    string
	Password string
}

// SwitchMsg asks the app to show the other auth screen.
type SwitchMsg struct {
	Register bool
}

// Mode selects the form.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// formBindings holds field values on the heap so huh's Value pointers
// survive Bubble Tea model copies.
type formBindings struct {
	username string
	email    string
	password string
}

// Model is the login or register screen.
type Model struct {
	mode   Mode
	form   *huh.Form
	fb     *formBindings
	err    string
	info   string
	busy   bool
	width  int
	height int
}

func New(mode Mode, width, height int) Model {
	return Model{
		mode:   mode,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the form and focuses its first field. The email is kept so
// a failed attempt does not have to retype it.
func (m *Model) Start() tea.Cmd {
	m.fb.password = ""
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows a failure under the form and re-opens it.
func (m *Model) SetError(msg string) tea.Cmd {
	m.err = msg
	m.info = ""
	return m.Start()
}

// SetInfo shows a neutral message, e.g. after registering.
func (m *Model) SetInfo(msg string) {
	m.info = msg
	m.err = ""
}

func (m Model) Mode() Mode { return m.mode }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+r" {
		return m, func() tea.Msg { return SwitchMsg{Register: m.mode == ModeLogin} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted && !m.busy {
		m.busy = true
		return m, m.submit()
	}
	if m.form.State == huh.StateAborted {
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	title := "Sign in"
	hint := "ctrl+r create an account"
	if m.mode == ModeRegister {
		title = "Create account"
		hint = "ctrl+r back to sign in"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render(title), m.form.View()}
	if m.busy {
		parts = append(parts, theme.DimmedStyle.Render("Please wait..."))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.info != "" {
		parts = append(parts, theme.SuccessStyle.Render(m.info))
	}
	parts = append(parts, theme.HelpStyle.Render(hint))

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{}
	if m.mode == ModeRegister {
		fields = append(fields,
			huh.NewInput().
				Title("Username").
				Value(&m.fb.username).
				Validate(validateRequired("Username")),
		)
	}
	fields = append(fields,
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&m.fb.email).
			Validate(validateRequired("Email")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(validateRequired("Password")),
	)

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) submit() tea.Cmd {
	email := strings.TrimSpace(m.fb.email)
	password := m.fb.password

	if m.mode == ModeRegister {
		username := strings.TrimSpace(m.fb.username)
		return func() tea.Msg {
			return RegisterSubmittedMsg{Username: username, Email: email, Password: password}
		}
	}
	return func() tea.Msg {
		return LoginSubmittedMsg{Email: email, Password: password}
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 30 {
		w = 30
	}
	if w > 60 {
		w = 60
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
