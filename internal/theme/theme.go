package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/socialterm/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a post or profile card.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// UnreadBadgeStyle renders the unread notification counter.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// ToastStyle frames a transient notification banner.
var ToastStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Width(40).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBlue)

// KindStyle returns a color-coded style for a notification kind label.
func KindStyle(kind model.NotificationKind) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch kind {
	case model.KindMessage:
		return base.Foreground(ColorBlue)
	case model.KindFriendRequest:
		return base.Foreground(ColorMagenta)
	case model.KindLike:
		return base.Foreground(ColorRed)
	case model.KindComment:
		return base.Foreground(ColorGreen)
	case model.KindReminder:
		return base.Foreground(ColorOrange)
	case model.KindPost:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// KindIcon is the short glyph shown before a notification.
func KindIcon(kind model.NotificationKind) string {
	switch kind {
	case model.KindMessage:
		return "✉"
	case model.KindFriendRequest:
		return "+"
	case model.KindLike:
		return "♥"
	case model.KindComment:
		return "✎"
	case model.KindReminder:
		return "⏰"
	case model.KindPost:
		return "✓"
	default:
		return "•"
	}
}
