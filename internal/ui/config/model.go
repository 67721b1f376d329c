// Package config is the settings screen: it edits the connection settings
// in the config file and tests the API endpoint before saving.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeSummary        Mode = iota // Current settings
	ModeForm                       // Editing
	ModeValidating                 // Testing connection
	ModeValidateResult             // Show validation result
)

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg is sent after the settings were written.
type SavedMsg struct {
	Config model.AppConfig
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Err   error
	Saved bool
}

// Backend tests and persists settings.
type Backend interface {
	Check(ctx context.Context, cfg model.AppConfig) error
	Save(cfg model.AppConfig) error
}

// FileBackend saves to a YAML file and checks the API by requesting its
// base URL.
type FileBackend struct {
	Path    string
	Timeout time.Duration
}

// Check reports an error only when the server cannot be reached. Any HTTP
// answer, including 401 or 404, proves the base URL points at a server.
func (b FileBackend) Check(ctx context.Context, cfg model.AppConfig) error {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := api.NewClient(cfg.API.BaseURL, api.WithTimeout(timeout), api.WithMaxRetries(0))

	err := c.Get(ctx, "/", nil)
	switch api.ClassOf(err) {
	case api.ClassNetwork, api.ClassMalformed:
		return errors.New(api.Classify(err))
	}
	return nil
}

func (b FileBackend) Save(cfg model.AppConfig) error {
	return model.SaveConfig(b.Path, &cfg)
}

// formBindings holds field values on the heap so huh's Value pointers
// survive Bubble Tea model copies.
type formBindings struct {
	baseURL     string
	brokerURL   string
	topicPrefix string
	toastTTL    string
	useKeyring  bool
}

// Model is the Bubble Tea model for the settings screen.
type Model struct {
	mode    Mode
	backend Backend
	cfg     model.AppConfig
	draft   model.AppConfig
	form    *huh.Form
	fb      *formBindings

	validError error
	saving     bool
	saved      bool
	spinner    spinner.Model

	// Status message for transient feedback
	statusMsg string

	keys          *keys.KeyMap
	width, height int
}

// New creates a new settings view model for cfg.
func New(b Backend, cfg model.AppConfig, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeSummary,
		backend: b,
		cfg:     cfg,
		fb:      &formBindings{},
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Capturing reports whether the form is taking input.
func (m Model) Capturing() bool {
	return m.mode != ModeSummary
}

// Config returns the settings as last saved.
func (m Model) Config() model.AppConfig {
	return m.cfg
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ValidateResultMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		m.validError = msg.Err
		m.saved = msg.Saved
		m.mode = ModeValidateResult
		if msg.Saved {
			m.cfg = m.draft
			cfg := m.cfg
			return m, func() tea.Msg { return SavedMsg{Config: cfg} }
		}
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case ModeSummary:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return DoneMsg{} }
		case msg.String() == "e":
			m.statusMsg = ""
			m.fillForm()
			m.form = m.buildForm()
			m.mode = ModeForm
			return m, m.form.Init()
		case key.Matches(msg, m.keys.Select):
			m.draft = m.cfg
			return m.startValidation(false)
		}
		return m, nil

	case ModeForm:
		return m.updateForm(msg)

	case ModeValidating:
		// Only allow escape during validation
		if msg.String() == "esc" {
			m.mode = ModeSummary
			m.statusMsg = "Cancelled."
		}
		return m, nil

	case ModeValidateResult:
		switch msg.String() {
		case "enter", "esc":
			m.mode = ModeSummary
			m.validError = nil
			return m, nil
		case "r":
			if m.validError != nil {
				return m.startValidation(m.saving)
			}
		}
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		draft, err := m.applyForm()
		if err != nil {
			m.statusMsg = err.Error()
			m.mode = ModeSummary
			return m, nil
		}
		m.draft = draft
		return m.startValidation(true)
	case huh.StateAborted:
		m.mode = ModeSummary
		return m, nil
	}
	return m, cmd
}

// startValidation tests the draft and, when save is set, writes it once the
// test passes.
func (m Model) startValidation(save bool) (Model, tea.Cmd) {
	m.mode = ModeValidating
	m.validError = nil
	m.saving = save
	m.saved = false

	b, draft := m.backend, m.draft
	return m, tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := b.Check(ctx, draft); err != nil {
				return ValidateResultMsg{Err: err}
			}
			if !save {
				return ValidateResultMsg{}
			}
			if err := b.Save(draft); err != nil {
				return ValidateResultMsg{Err: fmt.Errorf("saving settings: %w", err)}
			}
			return ValidateResultMsg{Saved: true}
		},
	)
}

func (m *Model) fillForm() {
	m.fb.baseURL = m.cfg.API.BaseURL
	m.fb.brokerURL = m.cfg.Realtime.BrokerURL
	m.fb.topicPrefix = m.cfg.Realtime.TopicPrefix
	m.fb.toastTTL = strconv.Itoa(m.cfg.Realtime.ToastTTLSec)
	m.fb.useKeyring = m.cfg.Storage.UseKeyring
}

func (m Model) applyForm() (model.AppConfig, error) {
	ttl, err := strconv.Atoi(strings.TrimSpace(m.fb.toastTTL))
	if err != nil {
		return model.AppConfig{}, fmt.Errorf("toast duration must be a number")
	}

	draft := m.cfg
	draft.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/")
	draft.Realtime.BrokerURL = strings.TrimSpace(m.fb.brokerURL)
	draft.Realtime.TopicPrefix = strings.TrimSpace(m.fb.topicPrefix)
	draft.Realtime.ToastTTLSec = ttl
	draft.Storage.UseKeyring = m.fb.useKeyring
	return draft, nil
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Description("Prefix for every REST request").
				Placeholder("http://localhost:5173/api").
				Value(&m.fb.baseURL).
				Validate(validateURL("http", "https")),
			huh.NewInput().
				Title("Notification broker").
				Description("STOMP over WebSocket endpoint").
				Placeholder("ws://localhost:5173/ws").
				Value(&m.fb.brokerURL).
				Validate(validateURL("ws", "wss")),
			huh.NewInput().
				Title("Topic prefix").
				Value(&m.fb.topicPrefix).
				Validate(validateRequired("Topic prefix")),
			huh.NewInput().
				Title("Toast duration (seconds)").
				Value(&m.fb.toastTTL).
				Validate(validateSeconds),
			huh.NewConfirm().
				Title("Keep the credential in the OS keyring?").
				Value(&m.fb.useKeyring),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

// View renders the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	switch m.mode {
	case ModeForm:
		if m.form == nil {
			return ""
		}
		return style.Render(m.form.View())
	case ModeValidating:
		return style.Render(fmt.Sprintf(
			"%s Testing connection to %s...\n\nPress esc to cancel.",
			m.spinner.View(), m.draft.API.BaseURL,
		))
	case ModeValidateResult:
		return style.Render(m.viewValidateResult())
	default:
		return style.Render(m.viewSummary())
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	keyring := "no"
	if m.cfg.Storage.UseKeyring {
		keyring = "yes"
	}
	rows := [][2]string{
		{"API base URL", m.cfg.API.BaseURL},
		{"Notification broker", m.cfg.Realtime.BrokerURL},
		{"Topic prefix", m.cfg.Realtime.TopicPrefix},
		{"Toast duration", fmt.Sprintf("%ds", m.cfg.Realtime.ToastTTLSec)},
		{"OS keyring", keyring},
	}
	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(22)
	for _, r := range rows {
		b.WriteString(label.Render(r[0]) + r[1] + "\n")
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Italic(true).
			Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(theme.HelpStyle.Render("e edit | enter test connection | esc back"))
	return b.String()
}

func (m Model) viewValidateResult() string {
	if m.validError != nil {
		return lipgloss.NewStyle().Bold(true).Foreground(theme.ColorRed).Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			theme.HelpStyle.Render("r retry | enter/esc back")
	}

	msg := "The server answered."
	if m.saved {
		msg = "Settings saved. Restart to apply."
	}
	return lipgloss.NewStyle().Bold(true).Foreground(theme.ColorGreen).Render("Connection successful") + "\n\n" +
		msg + "\n\n" +
		theme.HelpStyle.Render("enter/esc back")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(schemes ...string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("URL is required")
		}
		parsed, err := url.Parse(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid URL: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("URL must include scheme and host (e.g., %s://example.com)", schemes[0])
		}
		for _, sc := range schemes {
			if parsed.Scheme == sc {
				return nil
			}
		}
		return fmt.Errorf("URL scheme must be one of %s", strings.Join(schemes, ", "))
	}
}

func validateSeconds(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number of seconds")
	}
	return nil
}
