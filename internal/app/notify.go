package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/router"
	notificationsview "github.com/nhle/socialterm/internal/ui/notifications"
)

// notifyUpdateMsg relays one notify.Update into the Bubble Tea loop.
type notifyUpdateMsg struct {
	update notify.Update
}

// notifyConnectedMsg is sent when a Connect attempt returns.
type notifyConnectedMsg struct {
	err error
}

// listenNotify waits for the next channel update. It is re-armed after
// every update so exactly one listener is pending at a time.
func (m Model) listenNotify() tea.Cmd {
	ch := m.deps.Notify.Updates()
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return notifyUpdateMsg{update: u}
	}
}

func (m Model) connectNotify() tea.Cmd {
	n := m.deps.Notify
	return func() tea.Msg {
		return notifyConnectedMsg{err: n.Connect(context.Background())}
	}
}

func (m Model) handleNotifyUpdate(u notify.Update) (tea.Model, tea.Cmd) {
	switch u.Kind {
	case notify.UpdateState:
		m.notifyState = u.State
	case notify.UpdateHistory, notify.UpdateNotification:
		m.notificationsView.Changed()
	case notify.UpdateError:
		var perr *notify.ParseError
		if errors.As(u.Err, &perr) {
			log.Warn("ignored malformed notification", zap.Error(u.Err))
			break
		}
		if m.sessionActive {
			m.setFlash(notifyErrorText(u.Err), true)
		}
	}
	return m, m.listenNotify()
}

// openNotification navigates to what a notification is about.
func (m *Model) openNotification(msg notificationsview.OpenMsg) tea.Cmd {
	n := msg.Notification
	switch n.Kind {
	case model.KindFriendRequest:
		return m.navigate(router.Friends, "")
	case model.KindLike, model.KindComment, model.KindPost:
		return m.navigate(router.Feed, "")
	case model.KindMessage:
		if n.SenderID != "" {
			return m.navigate(router.Profile, n.SenderID)
		}
	}
	return nil
}

func notifyErrorText(err error) string {
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		return "Live notifications unavailable: no user id in session."
	case errors.Is(err, notify.ErrNotConnected):
		return "Not connected to the notification service."
	}

	var cerr *notify.ConnectError
	if errors.As(err, &cerr) {
		return "Live notifications unavailable; will retry."
	}
	return api.Classify(err)
}
