package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/router"
	appsync "github.com/nhle/socialterm/internal/sync"
	authview "github.com/nhle/socialterm/internal/ui/auth"
)

// Background refresh jobs.
const (
	jobFriendRequests = "friend-requests"
	jobUnreadMessages = "unread-messages"
	jobNotifications  = "notifications"
)

// navigateMsg asks the root model to show a route.
type navigateMsg struct {
	route  router.Name
	userID string
}

// loginResultMsg is sent when a login attempt completes.
type loginResultMsg struct{ result api.Result }

// registerResultMsg is sent when a registration attempt completes.
type registerResultMsg struct{ result api.Result }

// loggedOutMsg is sent after the stored session has been cleared.
type loggedOutMsg struct{ err error }

func navigate(route router.Name, userID string) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{route: route, userID: userID}
	}
}

// navigate resolves route through the guard and switches to the screen it
// allows. Entering a guarded screen with a restored or fresh session starts
// the session's background work.
func (m *Model) navigate(route router.Name, userID string) tea.Cmd {
	r, err := m.guard.Resolve(route)
	if err != nil {
		log.Warn("navigation rejected", zap.String("route", string(route)), zap.Error(err))
		m.setFlash(err.Error(), true)
		return nil
	}
	if r.Name != route {
		log.Debug("redirected", zap.String("from", string(route)), zap.String("to", string(r.Name)))
	}

	m.flash = ""
	m.currentView = screens[r.Name]

	var cmds []tea.Cmd
	if r.RequiresAuth && !m.sessionActive {
		cmds = append(cmds, m.startSession())
	}

	switch r.Name {
	case router.Login:
		m.authView = authview.New(authview.ModeLogin, m.layout.ContentWidth(), m.layout.ContentHeight())
		cmds = append(cmds, m.authView.Start())
	case router.Register:
		m.authView = authview.New(authview.ModeRegister, m.layout.ContentWidth(), m.layout.ContentHeight())
		cmds = append(cmds, m.authView.Start())
	case router.Friends:
		cmds = append(cmds, m.friendsView.Load())
	case router.Profile:
		cmds = append(cmds, m.profileView.Show(userID))
	case router.Notifications:
		m.notificationsView.Changed()
	}

	return tea.Batch(cmds...)
}

// startSession connects the notification channel, starts the refresh jobs
// and loads the feed.
func (m *Model) startSession() tea.Cmd {
	m.sessionActive = true
	m.authErrorMessage = ""
	return tea.Batch(
		m.connectNotify(),
		m.deps.Poller.Start(),
		m.feedView.Load(),
	)
}

// logout stops background work, forgets every user-scoped cache and then
// clears the stored session.
func (m *Model) logout() tea.Cmd {
	m.sessionActive = false
	m.authErrorMessage = ""
	m.deps.Poller.Stop()
	m.deps.Notify.Reset()
	m.deps.Friends.Reset()
	m.deps.Feed.Reset()
	m.deps.Chat.Reset()
	m.deps.Groups.Reset()
	m.feedView.Reset()
	m.friendsView.Reset()
	m.profileView.Reset()
	m.notificationsView.Reset()

	s := m.deps.Session
	return func() tea.Msg {
		return loggedOutMsg{err: s.Logout(context.Background())}
	}
}

func (m Model) login(email, password string) tea.Cmd {
	s := m.deps.Session
	return func() tea.Msg {
		return loginResultMsg{result: s.Login(context.Background(), email, password)}
	}
}

func (m Model) register(username, email, password string) tea.Cmd {
	s := m.deps.Session
	return func() tea.Msg {
		return registerResultMsg{result: s.Register(context.Background(), username, email, password)}
	}
}

// registerJobs adds the periodic refreshes that keep badges current while
// signed in. The notifications job also reopens a channel whose first
// connect failed.
func (m *Model) registerJobs() {
	d := m.deps

	d.Poller.Register(appsync.Job{
		Name:     jobFriendRequests,
		Interval: time.Minute,
		Run:      appsync.FromResult(d.Friends.FetchPendingRequests),
	})
	d.Poller.Register(appsync.Job{
		Name:     jobUnreadMessages,
		Interval: 30 * time.Second,
		Run:      appsync.FromResult(d.Chat.FetchUnreadCount),
	})
	d.Poller.Register(appsync.Job{
		Name:     jobNotifications,
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			if d.Notify.State() == notify.Disconnected {
				return d.Notify.Connect(ctx)
			}
			err := d.Notify.Refresh(ctx)
			if errors.Is(err, notify.ErrNotConnected) {
				return appsync.ErrSkip
			}
			return err
		},
	})
}
