// Package toast renders the transient notification banners.
package toast

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
)

// MaxVisible caps how many toasts are stacked at once; the newest win.
const MaxVisible = 3

// Render stacks toasts newest last. It returns "" when there is nothing
// to show.
func Render(toasts []notify.Toast) string {
	if len(toasts) == 0 {
		return ""
	}
	if len(toasts) > MaxVisible {
		toasts = toasts[len(toasts)-MaxVisible:]
	}

	width := theme.ToastStyle.GetWidth() - theme.ToastStyle.GetHorizontalFrameSize()
	blocks := make([]string, 0, len(toasts))
	for _, t := range toasts {
		blocks = append(blocks, renderOne(t, width))
	}
	return lipgloss.JoinVertical(lipgloss.Right, blocks...)
}

func renderOne(t notify.Toast, width int) string {
	n := t.Notification
	icon := theme.KindStyle(n.Kind).Render(theme.KindIcon(n.Kind))
	title := lipgloss.NewStyle().Bold(true).Render(ui.Truncate(n.Title(), width-2))

	lines := []string{icon + " " + title}
	if body := strings.TrimSpace(n.Body()); body != "" {
		lines = append(lines, ui.Truncate(body, width))
	}
	return theme.ToastStyle.BorderForeground(theme.KindStyle(n.Kind).GetForeground()).Render(strings.Join(lines, "\n"))
}
