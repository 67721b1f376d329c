package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	TabsHeight      int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		TabsHeight:      1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the active screen.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.TabsHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top bar with a title on the left and a status
// on the right.
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// Tab is one entry of the screen switcher.
type Tab struct {
	Key    string
	Label  string
	Active bool
}

// RenderTabs renders the screen switcher line.
func (l Layout) RenderTabs(tabs []Tab) string {
	parts := make([]string, 0, len(tabs))
	for _, t := range tabs {
		label := t.Key + " " + t.Label
		if t.Active {
			parts = append(parts, theme.SelectedItemStyle.Render(label))
			continue
		}
		parts = append(parts, theme.ListItemStyle.Render(theme.DimmedStyle.Render(label)))
	}
	return lipgloss.NewStyle().MaxWidth(l.Width).Render(strings.Join(parts, " "))
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// WithOverlay draws overlay in the top-right corner of content, replacing
// the lines underneath.
func (l Layout) WithOverlay(content, overlay string) string {
	if overlay == "" {
		return content
	}

	base := strings.Split(content, "\n")
	top := strings.Split(overlay, "\n")
	w := lipgloss.Width(overlay)
	for i, line := range top {
		placed := lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, line)
		if i < len(base) && lipgloss.Width(base[i]) <= l.Width-w-1 {
			pad := l.Width - lipgloss.Width(base[i]) - lipgloss.Width(line)
			placed = base[i] + strings.Repeat(" ", max(pad, 0)) + line
		}
		if i < len(base) {
			base[i] = placed
		} else {
			base = append(base, placed)
		}
	}
	return strings.Join(base, "\n")
}

// RenderWithFrame composes the full view: header, tabs, content and
// status bar.
func (l Layout) RenderWithFrame(
	header string,
	tabs string,
	content string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		tabs,
		content,
		statusBar,
	)
}
