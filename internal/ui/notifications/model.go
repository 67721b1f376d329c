// Package notifications lists the notification history and marks entries
// read.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
)

// Source is the notification channel as seen by this screen.
type Source interface {
	State() notify.State
	History() []model.Notification
	UnreadCount() int
	Refresh(ctx context.Context) error
	MarkAsRead(ctx context.Context, id model.NotificationID) error
	MarkAllAsRead(ctx context.Context) error
}

// OpenMsg asks the parent to navigate to what a notification refers to.
type OpenMsg struct {
	Notification model.Notification
}

type doneMsg struct {
	err     error
	success string
}

// Model is the Bubble Tea model for the notification list.
type Model struct {
	src         Source
	keys        *keys.KeyMap
	selectedIdx int
	offset      int
	statusMsg   string
	failed      bool
	width       int
	height      int
}

func New(src Source, k *keys.KeyMap, width, height int) Model {
	return Model{src: src, keys: k, width: width, height: height}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Changed re-reads the history after the channel reported an update.
func (m *Model) Changed() {
	m.clamp()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case doneMsg:
		m.failed = msg.err != nil
		m.statusMsg = msg.success
		if msg.err != nil {
			m.statusMsg = errorText(msg.err)
		}
		m.clamp()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	history := m.src.History()

	switch {
	case key.Matches(msg, m.keys.Down):
		if len(history) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(history)
		}
		m.scroll()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(history) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(history) - 1
			}
		}
		m.scroll()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		src := m.src
		return m, func() tea.Msg {
			return doneMsg{err: src.Refresh(context.Background()), success: "Notifications refreshed."}
		}

	case key.Matches(msg, m.keys.MarkRead):
		if m.selectedIdx >= len(history) {
			return m, nil
		}
		n := history[m.selectedIdx]
		if n.Read {
			return m, nil
		}
		return m, m.markRead(n.ID, "")

	case key.Matches(msg, m.keys.MarkAll):
		if m.src.UnreadCount() == 0 {
			return m, nil
		}
		src := m.src
		return m, func() tea.Msg {
			return doneMsg{err: src.MarkAllAsRead(context.Background()), success: "All notifications marked as read."}
		}

	case key.Matches(msg, m.keys.Select):
		if m.selectedIdx >= len(history) {
			return m, nil
		}
		n := history[m.selectedIdx]
		open := func() tea.Msg { return OpenMsg{Notification: n} }
		if n.Read {
			return m, open
		}
		return m, tea.Batch(m.markRead(n.ID, ""), open)
	}
	return m, nil
}

func (m Model) markRead(id model.NotificationID, success string) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		return doneMsg{err: src.MarkAsRead(context.Background(), id), success: success}
	}
}

func (m Model) View() string {
	history := m.src.History()

	var b strings.Builder
	title := fmt.Sprintf("Notifications (%d unread)", m.src.UnreadCount())
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(title))
	if st := m.src.State(); st != notify.Connected {
		b.WriteString("  ")
		b.WriteString(theme.DimmedStyle.Render(st.String()))
	}
	b.WriteString("\n\n")

	if len(history) == 0 {
		b.WriteString(theme.DimmedStyle.Render("You're all caught up."))
	}

	end := min(m.offset+m.visibleRows(), len(history))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i, history[i]))
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		style := theme.SuccessStyle
		if m.failed {
			style = theme.ErrorStyle
		}
		b.WriteString("\n")
		b.WriteString(style.Render(m.statusMsg))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) renderRow(i int, n model.Notification) string {
	marker := "  "
	if !n.Read {
		marker = theme.UnreadBadgeStyle.Render("●") + " "
	}

	icon := theme.KindStyle(n.Kind).Render(theme.KindIcon(n.Kind))
	text := n.Title()
	if body := n.Body(); body != "" {
		text += ": " + body
	}
	text = ui.Truncate(text, max(m.width-24, 10))
	when := theme.DimmedStyle.Render(ui.RelativeTime(n.SortTime()))

	line := fmt.Sprintf("%s%s %s  %s", marker, icon, text, when)
	if i == m.selectedIdx {
		return theme.SelectedItemStyle.Render(line)
	}
	if n.Read {
		return theme.DimmedStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.scroll()
}

// Reset clears cursor and status, e.g. after logout.
func (m *Model) Reset() {
	m.selectedIdx = 0
	m.offset = 0
	m.statusMsg = ""
}

func (m Model) visibleRows() int {
	return max(m.height-6, 1)
}

func (m *Model) clamp() {
	n := len(m.src.History())
	if m.selectedIdx >= n {
		m.selectedIdx = max(n-1, 0)
	}
	m.scroll()
}

func (m *Model) scroll() {
	rows := m.visibleRows()
	if m.selectedIdx < m.offset {
		m.offset = m.selectedIdx
	}
	if m.selectedIdx >= m.offset+rows {
		m.offset = m.selectedIdx - rows + 1
	}
}

func errorText(err error) string {
	if errors.Is(err, notify.ErrNotConnected) {
		return "Not connected to the notification service."
	}
	return api.Classify(err)
}
