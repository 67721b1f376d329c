// Package feed is the news feed screen: the post list, the composer and
// a comments panel for the selected post.
package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
)

// Store is the part of the feed store this screen drives.
type Store interface {
	Posts() []model.Post
	IsSaved(postID string) bool
	FetchFeed(ctx context.Context) api.Result
	CreatePost(ctx context.Context, content, imageURL string) api.Result
	Like(ctx context.Context, postID string) api.Result
	Unlike(ctx context.Context, postID string) api.Result
	Save(ctx context.Context, postID string) api.Result
	Unsave(ctx context.Context, postID string) api.Result
	Comments(ctx context.Context, postID string) ([]model.Comment, api.Result)
	AddComment(ctx context.Context, postID, content string) (model.Comment, api.Result)
}

// LoadedMsg is sent when the feed has been fetched.
type LoadedMsg struct {
	Result api.Result
}

// PostedMsg is sent when the composer's post has been created.
type PostedMsg struct {
	Result api.Result
}

// LikedMsg is sent when a like toggle completes.
type LikedMsg struct {
	PostID string
	Liked  bool
	Result api.Result
}

// SavedMsg is sent when a save toggle completes.
type SavedMsg struct {
	PostID string
	Result api.Result
}

// CommentsMsg carries the comments of a post.
type CommentsMsg struct {
	PostID   string
	Comments []model.Comment
	Result   api.Result
}

// CommentedMsg is sent when a comment has been added.
type CommentedMsg struct {
	PostID string
	Result api.Result
}

type mode int

const (
	modeList mode = iota
	modeCompose
	modeComments
	modeComment
)

type composeBindings struct {
	content  string
	imageURL string
}

// Model is the feed screen.
type Model struct {
	store    Store
	keys     *keys.KeyMap
	list     list.Model
	mode     mode
	form     *huh.Form
	cb       *composeBindings
	comments viewport.Model
	input    textinput.Model
	postID   string
	liked    map[string]bool
	status   string
	failed   bool
	loading  bool
	width    int
	height   int
}

func New(s Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, PostDelegate{}, width, height-2)
	l.Title = "Feed"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	ti := textinput.New()
	ti.Placeholder = "write a comment..."
	ti.Prompt = "> "
	ti.Width = width - 4

	return Model{
		store:    s,
		keys:     k,
		list:     l,
		cb:       &composeBindings{},
		comments: viewport.New(width, height-4),
		input:    ti,
		liked:    make(map[string]bool),
		width:    width,
		height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Load fetches the feed.
func (m *Model) Load() tea.Cmd {
	m.loading = true
	s := m.store
	return func() tea.Msg {
		return LoadedMsg{Result: s.FetchFeed(context.Background())}
	}
}

// Capturing reports whether the screen is taking text input, so global
// single-key shortcuts must not fire.
func (m Model) Capturing() bool {
	return m.mode == modeCompose || m.mode == modeComment
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.setResult(msg.Result, "")
		return m, m.refreshItems()

	case PostedMsg:
		m.mode = modeList
		m.setResult(msg.Result, "Post published.")
		return m, m.refreshItems()

	case LikedMsg:
		if msg.Result.Success {
			m.liked[msg.PostID] = msg.Liked
		}
		m.setResult(msg.Result, "")
		return m, m.refreshItems()

	case SavedMsg:
		m.setResult(msg.Result, "")
		return m, m.refreshItems()

	case CommentsMsg:
		if msg.PostID != m.postID {
			return m, nil
		}
		m.setResult(msg.Result, "")
		m.comments.SetContent(renderComments(msg.Comments, m.width))
		return m, nil

	case CommentedMsg:
		m.mode = modeComments
		m.setResult(msg.Result, "Comment added.")
		if !msg.Result.Success {
			return m, nil
		}
		return m, tea.Batch(m.loadComments(msg.PostID), m.refreshItems())

	case tea.KeyMsg:
		switch m.mode {
		case modeCompose:
			return m.updateCompose(msg)
		case modeComments:
			return m.updateComments(msg)
		case modeComment:
			return m.updateComment(msg)
		}
		return m.handleListKeys(msg)
	}

	if m.mode == modeCompose && m.form != nil {
		return m.updateCompose(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleListKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		return m, m.Load()

	case key.Matches(msg, m.keys.Compose):
		m.mode = modeCompose
		m.cb.content, m.cb.imageURL = "", ""
		m.form = m.buildComposeForm()
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Like):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.toggleLike(p.ID)

	case key.Matches(msg, m.keys.Save):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.toggleSave(p.ID)

	case key.Matches(msg, m.keys.Select):
		p, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeComments
		m.postID = p.ID
		m.comments.SetContent(theme.DimmedStyle.Render("Loading comments..."))
		m.comments.GotoTop()
		return m, m.loadComments(p.ID)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateCompose(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		content, imageURL := m.cb.content, strings.TrimSpace(m.cb.imageURL)
		s := m.store
		return m, func() tea.Msg {
			return PostedMsg{Result: s.CreatePost(context.Background(), content, imageURL)}
		}
	case huh.StateAborted:
		m.form = nil
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateComments(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeList
		m.postID = ""
		return m, nil
	case msg.String() == "c":
		m.mode = modeComment
		m.input.Reset()
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	m.comments, cmd = m.comments.Update(msg)
	return m, cmd
}

func (m Model) updateComment(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.mode = modeComments
		return m, nil
	case "enter":
		m.input.Blur()
		content := m.input.Value()
		postID := m.postID
		s := m.store
		return m, func() tea.Msg {
			_, res := s.AddComment(context.Background(), postID, content)
			return CommentedMsg{PostID: postID, Result: res}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var body string
	switch m.mode {
	case modeCompose:
		if m.form != nil {
			body = lipgloss.NewStyle().Padding(1, 2).Render(
				lipgloss.JoinVertical(lipgloss.Left,
					lipgloss.NewStyle().Bold(true).Render("New post"),
					m.form.View(),
				))
		}
	case modeComments, modeComment:
		body = m.viewComments()
	default:
		if len(m.list.Items()) == 0 {
			body = m.renderEmptyState()
		} else {
			body = m.list.View()
		}
	}

	if m.status == "" {
		return body
	}
	style := theme.SuccessStyle
	if m.failed {
		style = theme.ErrorStyle
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, style.Render(m.status))
}

func (m Model) viewComments() string {
	title := lipgloss.NewStyle().Bold(true).Render("Comments")
	if p, ok := m.post(m.postID); ok {
		title = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(p.AuthorID),
			theme.PanelStyle.Width(m.width-4).Render(p.Content),
			title,
		)
	}

	parts := []string{title, m.comments.View()}
	if m.mode == modeComment {
		parts = append(parts, m.input.View())
	} else {
		parts = append(parts, theme.HelpStyle.Render("c comment | esc back"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderEmptyState() string {
	msg := "Your feed is empty.\n\nPress n to write the first post."
	if m.loading {
		msg = "Loading feed..."
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height-2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(msg)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.comments.Width = width
	m.comments.Height = height - 8
	m.input.Width = width - 4
}

// Reset forgets per-user state, e.g. after logout.
func (m *Model) Reset() {
	m.mode = modeList
	m.form = nil
	m.postID = ""
	m.liked = make(map[string]bool)
	m.status = ""
	m.list.SetItems(nil)
}

func (m *Model) setResult(res api.Result, success string) {
	m.failed = !res.Success
	if res.Success {
		m.status = success
		return
	}
	m.status = res.Message
}

func (m *Model) refreshItems() tea.Cmd {
	posts := m.store.Posts()
	items := make([]list.Item, len(posts))
	for i, p := range posts {
		items[i] = PostItem{Post: p, Liked: m.liked[p.ID], Saved: m.store.IsSaved(p.ID)}
	}
	return m.list.SetItems(items)
}

func (m Model) selected() (model.Post, bool) {
	item, ok := m.list.SelectedItem().(PostItem)
	if !ok {
		return model.Post{}, false
	}
	return item.Post, true
}

func (m Model) post(id string) (model.Post, bool) {
	for _, p := range m.store.Posts() {
		if p.ID == id {
			return p, true
		}
	}
	return model.Post{}, false
}

func (m Model) toggleLike(postID string) tea.Cmd {
	s := m.store
	liked := m.liked[postID]
	return func() tea.Msg {
		if liked {
			return LikedMsg{PostID: postID, Liked: false, Result: s.Unlike(context.Background(), postID)}
		}
		return LikedMsg{PostID: postID, Liked: true, Result: s.Like(context.Background(), postID)}
	}
}

func (m Model) toggleSave(postID string) tea.Cmd {
	s := m.store
	saved := s.IsSaved(postID)
	return func() tea.Msg {
		if saved {
			return SavedMsg{PostID: postID, Result: s.Unsave(context.Background(), postID)}
		}
		return SavedMsg{PostID: postID, Result: s.Save(context.Background(), postID)}
	}
}

func (m Model) loadComments(postID string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		comments, res := s.Comments(context.Background(), postID)
		return CommentsMsg{PostID: postID, Comments: comments, Result: res}
	}
}

func (m *Model) buildComposeForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("What's on your mind?").
				Value(&m.cb.content).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("post cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Image URL").
				Placeholder("optional").
				Value(&m.cb.imageURL),
		),
	).WithWidth(min(max(m.width-4, 40), 100)).WithShowHelp(false)
}

func renderComments(comments []model.Comment, width int) string {
	if len(comments) == 0 {
		return theme.DimmedStyle.Render("No comments yet.")
	}

	lines := make([]string, 0, len(comments))
	for _, c := range comments {
		head := lipgloss.NewStyle().Bold(true).Render(c.AuthorID) + "  " +
			theme.DimmedStyle.Render(ui.RelativeTime(c.CreatedAt))
		body := lipgloss.NewStyle().Width(width - 4).Render(c.Content)
		lines = append(lines, head+"\n"+body)
	}
	return strings.Join(lines, "\n\n")
}
