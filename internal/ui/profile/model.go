// Package profile shows a user's details and posts.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
)

// Store loads profiles and their posts.
type Store interface {
	Me(ctx context.Context) (model.User, api.Result)
	User(ctx context.Context, userID string) (model.User, api.Result)
	UserPosts(ctx context.Context, authorID string) ([]model.Post, api.Result)
}

// LoadedMsg carries a fetched profile.
type LoadedMsg struct {
	UserID string
	User   model.User
	Posts  []model.Post
	Result api.Result
}

// Model is the profile screen. An empty user id means the signed-in user.
type Model struct {
	store    Store
	keys     *keys.KeyMap
	userID   string
	user     model.User
	posts    []model.Post
	viewport viewport.Model
	loading  bool
	err      string
	width    int
	height   int
}

func New(s Store, k *keys.KeyMap, width, height int) Model {
	return Model{
		store:    s,
		keys:     k,
		viewport: viewport.New(width, max(height-6, 1)),
		width:    width,
		height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return m.load()
}

// Show switches to userID's profile and loads it.
func (m *Model) Show(userID string) tea.Cmd {
	if userID != m.userID {
		m.user = model.User{}
		m.posts = nil
		m.viewport.SetContent("")
	}
	m.userID = userID
	m.err = ""
	m.loading = true
	return m.load()
}

// UserID is the profile being shown; empty for the signed-in user.
func (m Model) UserID() string {
	return m.userID
}

func (m Model) load() tea.Cmd {
	s, id := m.store, m.userID
	return func() tea.Msg {
		ctx := context.Background()

		var (
			u   model.User
			res api.Result
		)
		if id == "" {
			u, res = s.Me(ctx)
		} else {
			u, res = s.User(ctx, id)
		}
		if !res.Success {
			return LoadedMsg{UserID: id, Result: res}
		}

		author := id
		if author == "" {
			author = u.ID
		}
		posts, res := s.UserPosts(ctx, author)
		return LoadedMsg{UserID: id, User: u, Posts: posts, Result: res}
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if msg.UserID != m.userID {
			return m, nil
		}
		m.loading = false
		if !msg.Result.Success {
			m.err = msg.Result.Message
		}
		if msg.User.Username != "" || msg.User.ID != "" {
			m.user = msg.User
		}
		m.posts = msg.Posts
		m.viewport.SetContent(m.renderPosts())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Refresh) {
			m.loading = true
			return m, m.load()
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.loading && m.user.Username == "" {
		return lipgloss.NewStyle().Padding(1, 2).Foreground(theme.ColorGray).Render("Loading profile...")
	}

	name := m.user.DisplayName()
	if name == "" {
		name = "Unknown user"
	}

	var lines []string
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue).Render(name))
	if m.user.Email != "" {
		lines = append(lines, theme.DimmedStyle.Render(m.user.Email))
	}
	if m.user.Bio != "" {
		lines = append(lines, lipgloss.NewStyle().Width(max(m.width-4, 10)).Render(m.user.Bio))
	}
	lines = append(lines, theme.DimmedStyle.Render(fmt.Sprintf("%d posts", len(m.posts))), "")
	lines = append(lines, m.viewport.View())
	if m.err != "" {
		lines = append(lines, theme.ErrorStyle.Render(m.err))
	}

	return lipgloss.NewStyle().Padding(0, 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = max(height-6, 1)
	m.viewport.SetContent(m.renderPosts())
}

// Reset forgets the shown profile.
func (m *Model) Reset() {
	m.userID = ""
	m.user = model.User{}
	m.posts = nil
	m.err = ""
	m.viewport.SetContent("")
}

func (m Model) renderPosts() string {
	if len(m.posts) == 0 {
		return theme.DimmedStyle.Render("No posts yet.")
	}

	width := max(m.width-8, 10)
	var b strings.Builder
	for i, p := range m.posts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		meta := fmt.Sprintf("%s  ♥ %d  ✎ %d", ui.RelativeTime(p.CreatedAt), p.LikesCount, p.CommentsCount)
		b.WriteString(theme.DimmedStyle.Render(meta))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(p.Content))
	}
	return b.String()
}
