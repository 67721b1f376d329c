package feed

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
)

// PostItem wraps a model.Post so it can be used in a bubbles/list.
type PostItem struct {
	Post  model.Post
	Liked bool
	Saved bool
}

func (i PostItem) FilterValue() string { return i.Post.Content }

// PostDelegate renders a post as a header line and a content preview.
type PostDelegate struct{}

func (d PostDelegate) Height() int { return 2 }

func (d PostDelegate) Spacing() int { return 1 }

func (d PostDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d PostDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	pi, ok := item.(PostItem)
	if !ok {
		return
	}
	p := pi.Post

	heart := "♡"
	if pi.Liked {
		heart = lipgloss.NewStyle().Foreground(theme.ColorRed).Render("♥")
	}
	saved := ""
	if pi.Saved {
		saved = lipgloss.NewStyle().Foreground(theme.ColorYellow).Render(" ★")
	}

	author := lipgloss.NewStyle().Bold(true).Render(p.AuthorID)
	when := theme.DimmedStyle.Render(ui.RelativeTime(p.CreatedAt))
	header := fmt.Sprintf("%s  %s  %s %d  ✎ %d%s", author, when, heart, p.LikesCount, p.CommentsCount, saved)

	width := m.Width() - 4
	content := ui.Truncate(p.Content, width)
	if p.ImageURL != "" {
		content = strings.TrimSpace(content + " " + theme.DimmedStyle.Render("[image]"))
	}

	block := header + "\n" + content
	if index == m.Index() {
		block = theme.SelectedItemStyle.Render(block)
	} else {
		block = theme.ListItemStyle.Render(block)
	}
	fmt.Fprint(w, block)
}
