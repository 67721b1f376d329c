package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/router"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui/command"
)

// actionResultMsg reports the outcome of a palette command.
type actionResultMsg struct {
	ok      bool
	message string
}

func resultMsg(res api.Result, success string) actionResultMsg {
	if !res.Success {
		return actionResultMsg{ok: false, message: res.Message}
	}
	return actionResultMsg{ok: true, message: success}
}

func flashCmd(ok bool, message string) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{ok: ok, message: message}
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	args := c.Args

	switch c.Name {
	case "feed":
		return m.navigate(router.Feed, "")
	case "friends":
		return m.navigate(router.Friends, "")
	case "notifications":
		return m.navigate(router.Notifications, "")
	case "profile":
		userID := ""
		if len(args) > 0 {
			userID = args[0]
		}
		return m.navigate(router.Profile, userID)
	case "go":
		if len(args) != 1 {
			return flashCmd(false, "usage: go <path>")
		}
		return m.navigatePath(args[0])

	case "message":
		if len(args) != 2 || strings.TrimSpace(args[1]) == "" {
			return flashCmd(false, "usage: message <userId> <text>")
		}
		return m.sendMessage(args[0], args[1])
	case "upload":
		if len(args) != 1 {
			return flashCmd(false, "usage: upload <path>")
		}
		return m.upload(args[0])
	case "join":
		if len(args) != 1 {
			return flashCmd(false, "usage: join <groupId>")
		}
		g, id := m.deps.Groups, args[0]
		return func() tea.Msg {
			return resultMsg(g.Join(context.Background(), id), "Joined group.")
		}
	case "leave":
		if len(args) != 1 {
			return flashCmd(false, "usage: leave <groupId>")
		}
		g, id := m.deps.Groups, args[0]
		return func() tea.Msg {
			return resultMsg(g.Leave(context.Background(), id), "Left group.")
		}
	case "rsvp":
		return m.rsvp(args)

	case "theme":
		mode := ""
		if len(args) > 0 {
			mode = args[0]
		}
		return m.toggleTheme(mode)
	case "settings":
		if m.deps.Config == nil || m.deps.Settings == nil {
			return flashCmd(false, "Settings are unavailable.")
		}
		m.currentView = ViewSettings
		return nil
	case "refresh", "sync":
		m.deps.Poller.RefreshAll()
		return m.refreshActive()
	case "logout":
		return m.logout()
	case "quit", "q":
		m.shutdown()
		return tea.Quit
	default:
		return flashCmd(false, fmt.Sprintf("Unknown command: %s", c.Name))
	}
}

// navigatePath resolves a path such as /profile/42 through the guard.
func (m *Model) navigatePath(path string) tea.Cmd {
	r, params, err := m.guard.ResolvePath(path)
	if err != nil {
		return flashCmd(false, fmt.Sprintf("No screen at %s", path))
	}
	return m.navigate(r.Name, params["userId"])
}

func (m *Model) refreshActive() tea.Cmd {
	switch m.currentView {
	case ViewFeed:
		return m.feedView.Load()
	case ViewFriends:
		return m.friendsView.Load()
	case ViewProfile:
		return m.profileView.Show(m.profileView.UserID())
	}
	return nil
}

func (m Model) sendMessage(receiverID, content string) tea.Cmd {
	c := m.deps.Chat
	return func() tea.Msg {
		_, res := c.Send(context.Background(), receiverID, content)
		return resultMsg(res, "Message sent.")
	}
}

func (m Model) upload(path string) tea.Cmd {
	u, ok := m.deps.Session.Principal()
	if !ok || u.ID == "" {
		return flashCmd(false, "Sign in again before uploading.")
	}
	media := m.deps.Media

	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			log.Warn("cannot open upload", zap.String("path", path), zap.Error(err))
			return actionResultMsg{ok: false, message: fmt.Sprintf("Cannot open %s.", path)}
		}
		defer f.Close()

		md, res := media.Upload(context.Background(), u.ID, filepath.Base(path), f)
		if !res.Success {
			return resultMsg(res, "")
		}
		return actionResultMsg{ok: true, message: fmt.Sprintf("Uploaded %s: %s", md.OriginalFileName, md.URL)}
	}
}

// rsvp handles "rsvp <eventId> going|interested|cancel".
func (m Model) rsvp(args []string) tea.Cmd {
	if len(args) != 2 {
		return flashCmd(false, "usage: rsvp <eventId> going|interested|cancel")
	}
	g, id, status := m.deps.Groups, args[0], strings.ToLower(args[1])

	if status == "cancel" {
		return func() tea.Msg {
			return resultMsg(g.CancelRSVP(context.Background(), id), "RSVP cancelled.")
		}
	}
	return func() tea.Msg {
		return resultMsg(g.RSVP(context.Background(), id, status), "RSVP saved.")
	}
}

// toggleTheme flips the colour scheme, or sets it when mode is given.
func (m Model) toggleTheme(mode string) tea.Cmd {
	p := m.deps.Theme
	return func() tea.Msg {
		ctx := context.Background()

		var err error
		if mode == "" {
			err = p.Toggle(ctx)
		} else {
			err = p.Set(ctx, theme.Mode(strings.ToLower(mode)))
		}
		if err != nil {
			log.Warn("theme change failed", zap.Error(err))
			return actionResultMsg{ok: false, message: err.Error()}
		}
		return actionResultMsg{ok: true, message: fmt.Sprintf("Theme: %s", p.Mode())}
	}
}
