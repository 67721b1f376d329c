// Package friends is the friends screen: incoming requests, the friend
// list and user search.
package friends

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
)

// Store is the part of the friends store this screen drives.
type Store interface {
	Friends() []model.User
	Pending() []model.FriendRequest
	FetchFriends(ctx context.Context) api.Result
	FetchPendingRequests(ctx context.Context) api.Result
	SendRequest(ctx context.Context, userID string) api.Result
	Accept(ctx context.Context, friendshipID string) api.Result
	Reject(ctx context.Context, friendshipID string) api.Result
	Search(ctx context.Context, query string) []model.User
}

// OpenProfileMsg asks the parent to show a user's profile.
type OpenProfileMsg struct {
	UserID string
}

type loadedMsg struct {
	friends api.Result
	pending api.Result
}

type actionMsg struct {
	result  api.Result
	success string
}

type searchMsg struct {
	query   string
	results []model.User
}

type section int

const (
	sectionPending section = iota
	sectionFriends
	sectionSearch
)

type friendsMode int

const (
	modeList friendsMode = iota
	modeSearch
)

type formBindings struct {
	query string
}

// Model is the Bubble Tea model for the friends screen.
type Model struct {
	mode        friendsMode
	store       Store
	keys        *keys.KeyMap
	section     section
	selectedIdx int
	results     []model.User
	query       string
	form        *huh.Form
	fb          *formBindings
	statusMsg   string
	failed      bool
	width       int
	height      int
}

func New(s Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:  modeList,
		store: s,
		keys:  k,
		fb:    &formBindings{},
		width: width, height: height,
	}
}

// Init loads friends and pending requests.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load refetches both lists.
func (m Model) Load() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx := context.Background()
		return loadedMsg{
			friends: s.FetchFriends(ctx),
			pending: s.FetchPendingRequests(ctx),
		}
	}
}

// Capturing reports whether the search form has focus.
func (m Model) Capturing() bool {
	return m.mode == modeSearch
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		switch {
		case !msg.friends.Success:
			m.setStatus(msg.friends, "")
		case !msg.pending.Success:
			m.setStatus(msg.pending, "")
		}
		m.clampSelection()
		return m, nil

	case actionMsg:
		m.setStatus(msg.result, msg.success)
		if !msg.result.Success {
			return m, nil
		}
		return m, m.Load()

	case searchMsg:
		m.query = msg.query
		m.results = msg.results
		m.section = sectionSearch
		m.selectedIdx = 0
		if len(msg.results) == 0 {
			m.statusMsg = fmt.Sprintf("No users match %q.", msg.query)
			m.failed = false
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeSearch {
			return m.updateSearch(msg)
		}
		return m.handleListKey(msg)
	}

	if m.mode == modeSearch && m.form != nil {
		return m.updateSearch(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if n := m.sectionLen(); n > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % n
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if n := m.sectionLen(); n > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = n - 1
			}
		}
		return m, nil

	case msg.String() == "tab":
		m.section = (m.section + 1) % 3
		m.selectedIdx = 0
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Load()

	case key.Matches(msg, m.keys.AddFriend):
		m.fb.query = ""
		m.form = m.buildSearchForm()
		m.mode = modeSearch
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Accept):
		r, ok := m.selectedRequest()
		if !ok {
			return m, nil
		}
		return m, m.act(func(ctx context.Context) api.Result {
			return m.store.Accept(ctx, r.ID)
		}, fmt.Sprintf("You are now friends with %s.", requesterLabel(r)))

	case key.Matches(msg, m.keys.Reject):
		r, ok := m.selectedRequest()
		if !ok {
			return m, nil
		}
		return m, m.act(func(ctx context.Context) api.Result {
			return m.store.Reject(ctx, r.ID)
		}, "Request declined.")

	case key.Matches(msg, m.keys.Select):
		switch m.section {
		case sectionSearch:
			if m.selectedIdx >= len(m.results) {
				return m, nil
			}
			u := m.results[m.selectedIdx]
			return m, m.act(func(ctx context.Context) api.Result {
				return m.store.SendRequest(ctx, u.ID)
			}, fmt.Sprintf("Friend request sent to %s.", u.DisplayName()))
		case sectionFriends:
			friends := m.store.Friends()
			if m.selectedIdx >= len(friends) {
				return m, nil
			}
			id := friends[m.selectedIdx].ID
			return m, func() tea.Msg { return OpenProfileMsg{UserID: id} }
		}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		m.mode = modeList
		query := strings.TrimSpace(m.fb.query)
		s := m.store
		return m, func() tea.Msg {
			return searchMsg{query: query, results: s.Search(context.Background(), query)}
		}
	case huh.StateAborted:
		m.form = nil
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) View() string {
	if m.mode == modeSearch && m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				lipgloss.NewStyle().Bold(true).Render("Find people"),
				m.form.View(),
			))
	}

	var b strings.Builder

	pending := m.store.Pending()
	b.WriteString(m.sectionTitle(sectionPending, fmt.Sprintf("Requests (%d)", len(pending))))
	b.WriteString("\n")
	if len(pending) == 0 {
		b.WriteString(theme.DimmedStyle.Render("  No pending requests"))
		b.WriteString("\n")
	}
	for i, r := range pending {
		line := fmt.Sprintf("%s  %s", requesterLabel(r), theme.DimmedStyle.Render(ui.RelativeTime(r.CreatedAt)))
		b.WriteString(m.renderRow(sectionPending, i, line))
	}

	friends := m.store.Friends()
	b.WriteString("\n")
	b.WriteString(m.sectionTitle(sectionFriends, fmt.Sprintf("Friends (%d)", len(friends))))
	b.WriteString("\n")
	if len(friends) == 0 {
		b.WriteString(theme.DimmedStyle.Render("  No friends yet. Press / to find people."))
		b.WriteString("\n")
	}
	for i, u := range friends {
		b.WriteString(m.renderRow(sectionFriends, i, userLine(u)))
	}

	if m.query != "" {
		b.WriteString("\n")
		b.WriteString(m.sectionTitle(sectionSearch, fmt.Sprintf("Results for %q", m.query)))
		b.WriteString("\n")
		for i, u := range m.results {
			b.WriteString(m.renderRow(sectionSearch, i, userLine(u)))
		}
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("tab section | a accept | x decline | / search | enter add/open"))

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

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Reset forgets search state, e.g. after logout.
func (m *Model) Reset() {
	m.mode = modeList
	m.form = nil
	m.section = sectionPending
	m.selectedIdx = 0
	m.results = nil
	m.query = ""
	m.statusMsg = ""
}

func (m Model) act(fn func(ctx context.Context) api.Result, success string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{result: fn(context.Background()), success: success}
	}
}

func (m *Model) setStatus(res api.Result, success string) {
	m.failed = !res.Success
	if res.Success {
		m.statusMsg = success
		return
	}
	m.statusMsg = res.Message
}

func (m Model) sectionLen() int {
	switch m.section {
	case sectionPending:
		return len(m.store.Pending())
	case sectionFriends:
		return len(m.store.Friends())
	default:
		return len(m.results)
	}
}

func (m *Model) clampSelection() {
	if n := m.sectionLen(); m.selectedIdx >= n && m.selectedIdx > 0 {
		m.selectedIdx = max(n-1, 0)
	}
}

func (m Model) selectedRequest() (model.FriendRequest, bool) {
	if m.section != sectionPending {
		return model.FriendRequest{}, false
	}
	pending := m.store.Pending()
	if m.selectedIdx >= len(pending) {
		return model.FriendRequest{}, false
	}
	return pending[m.selectedIdx], true
}

func (m Model) sectionTitle(s section, title string) string {
	style := lipgloss.NewStyle().Bold(true)
	if s == m.section {
		style = style.Foreground(theme.ColorBlue)
	}
	return style.Render(title)
}

func (m Model) renderRow(s section, i int, line string) string {
	if s == m.section && i == m.selectedIdx {
		return theme.SelectedItemStyle.Render("> "+line) + "\n"
	}
	return theme.ListItemStyle.Render("  "+line) + "\n"
}

func (m Model) buildSearchForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Search").
				Placeholder("Name or email").
				Value(&m.fb.query).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("enter a name or email")
					}
					return nil
				}),
		),
	).WithWidth(min(max(m.width-4, 40), 80)).WithShowHelp(false)
}

func requesterLabel(r model.FriendRequest) string {
	if r.RequesterName != "" {
		return r.RequesterName
	}
	return r.RequesterID
}

func userLine(u model.User) string {
	line := u.DisplayName()
	if u.Email != "" && u.Email != line {
		line += "  " + theme.DimmedStyle.Render(u.Email)
	}
	return line
}
