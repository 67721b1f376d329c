package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/router"
	appsync "github.com/nhle/socialterm/internal/sync"
	"github.com/nhle/socialterm/internal/theme"
	"github.com/nhle/socialterm/internal/ui"
	authview "github.com/nhle/socialterm/internal/ui/auth"
	"github.com/nhle/socialterm/internal/ui/command"
	configview "github.com/nhle/socialterm/internal/ui/config"
	feedview "github.com/nhle/socialterm/internal/ui/feed"
	friendsview "github.com/nhle/socialterm/internal/ui/friends"
	helpview "github.com/nhle/socialterm/internal/ui/help"
	notificationsview "github.com/nhle/socialterm/internal/ui/notifications"
	profileview "github.com/nhle/socialterm/internal/ui/profile"
	"github.com/nhle/socialterm/internal/ui/toast"
)

var log = logging.NewNamed("app")

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewRegister
	ViewFeed
	ViewFriends
	ViewProfile
	ViewNotifications
	ViewHelp
	ViewCommand
	ViewSettings
)

// screens maps guarded routes to the view that renders them.
var screens = map[router.Name]ViewState{
	router.Login:         ViewLogin,
	router.Register:      ViewRegister,
	router.Feed:          ViewFeed,
	router.Friends:       ViewFriends,
	router.Profile:       ViewProfile,
	router.Notifications: ViewNotifications,
}

// Model is the root Bubble Tea model. It routes every navigation through
// the route guard, owns the session lifecycle and relays notification
// channel updates to the screens.
type Model struct {
	currentView       ViewState
	previousView      ViewState
	layout            ui.Layout
	deps              Deps
	guard             *router.Guard
	keys              *keys.KeyMap
	authView          authview.Model
	feedView          feedview.Model
	friendsView       friendsview.Model
	profileView       profileview.Model
	notificationsView notificationsview.Model
	helpView          helpview.Model
	commandView       command.Model
	settingsView      configview.Model
	ready             bool
	sessionActive     bool
	notifyState       notify.State
	flash             string
	flashErr          bool
	authErrorMessage  string
}

// New creates the root model and registers the background refresh jobs.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		currentView:       ViewLogin,
		deps:              d,
		guard:             router.NewGuard(d.Session),
		keys:              k,
		authView:          authview.New(authview.ModeLogin, 80, 24),
		feedView:          feedview.New(d.Feed, k, 80, 24),
		friendsView:       friendsview.New(d.Friends, k, 80, 24),
		profileView:       profileview.New(d.Feed, k, 80, 24),
		notificationsView: notificationsview.New(d.Notify, k, 80, 24),
		helpView:          helpview.New(k, 80, 24),
		commandView:       command.New(80, 24),
	}
	if d.Config != nil && d.Settings != nil {
		m.settingsView = configview.New(d.Settings, *d.Config, k, 80, 24)
	}
	m.registerJobs()
	return m
}

// Init starts listening to the notification channel and opens the feed;
// the guard sends signed-out users to the login screen instead.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.listenNotify(),
		navigate(router.Feed, ""),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.authView.SetSize(w, h)
		m.feedView.SetSize(w, h)
		m.friendsView.SetSize(w, h)
		m.profileView.SetSize(w, h)
		m.notificationsView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.settingsView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case navigateMsg:
		cmd := m.navigate(msg.route, msg.userID)
		return m, cmd

	case authview.LoginSubmittedMsg:
		return m, m.login(msg.Email, msg.Password)

	case authview.RegisterSubmittedMsg:
		return m, m.register(msg.Username, msg.Email, msg.Password)

	case authview.SwitchMsg:
		if msg.Register {
			cmd := m.navigate(router.Register, "")
			return m, cmd
		}
		cmd := m.navigate(router.Login, "")
		return m, cmd

	case loginResultMsg:
		if !msg.result.Success {
			cmd := m.authView.SetError(msg.result.Message)
			return m, cmd
		}
		cmd := m.navigate(router.Feed, "")
		return m, cmd

	case registerResultMsg:
		if !msg.result.Success {
			cmd := m.authView.SetError(msg.result.Message)
			return m, cmd
		}
		cmd := m.navigate(router.Login, "")
		m.authView.SetInfo("Registration successful. Please sign in.")
		return m, cmd

	case loggedOutMsg:
		if msg.err != nil {
			log.Error("logout did not clear stored session", zap.Error(msg.err))
		}
		cmd := m.navigate(router.Feed, "")
		m.authView.SetInfo("You have been logged out.")
		return m, cmd

	case notifyConnectedMsg:
		if msg.err != nil {
			m.setFlash(notifyErrorText(msg.err), true)
		}
		return m, nil

	case notifyUpdateMsg:
		return m.handleNotifyUpdate(msg.update)

	case appsync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		if !m.deps.Poller.Running() {
			return m, nil
		}
		return m, m.deps.Poller.WaitForNextResult()

	case actionResultMsg:
		m.setFlash(msg.message, !msg.ok)
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(msg)
		return m, cmd

	case friendsview.OpenProfileMsg:
		cmd := m.navigate(router.Profile, msg.UserID)
		return m, cmd

	case notificationsview.OpenMsg:
		cmd := m.openNotification(msg)
		return m, cmd

	case configview.DoneMsg:
		m.currentView = m.previousView
		return m, nil

	case configview.SavedMsg:
		*m.deps.Config = msg.Config
		log.Info("settings saved", zap.String("api", msg.Config.API.BaseURL))
		return m, nil

	case tea.KeyMsg:
		if handled, next, cmd := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Screen results go to their owner even when another view is showing.
	switch msg.(type) {
	case feedview.LoadedMsg, feedview.PostedMsg, feedview.LikedMsg,
		feedview.SavedMsg, feedview.CommentsMsg, feedview.CommentedMsg:
		var cmd tea.Cmd
		m.feedView, cmd = m.feedView.Update(msg)
		return m, cmd
	case profileview.LoadedMsg:
		var cmd tea.Cmd
		m.profileView, cmd = m.profileView.Update(msg)
		return m, cmd
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work regardless of the active view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (bool, tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return true, m, tea.Quit
	}

	if m.currentView == ViewLogin || m.currentView == ViewRegister || m.capturing() {
		return false, m, nil
	}

	switch m.currentView {
	case ViewHelp:
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return true, m, nil
		}
		return true, m, nil

	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return true, m, nil
		}
		return false, m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.shutdown()
		return true, m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return true, m, nil

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return true, m, cmd

	case key.Matches(msg, m.keys.Feed):
		cmd := m.navigate(router.Feed, "")
		return true, m, cmd

	case key.Matches(msg, m.keys.Friends):
		cmd := m.navigate(router.Friends, "")
		return true, m, cmd

	case key.Matches(msg, m.keys.Profile):
		cmd := m.navigate(router.Profile, "")
		return true, m, cmd

	case key.Matches(msg, m.keys.Notifications):
		cmd := m.navigate(router.Notifications, "")
		return true, m, cmd

	case key.Matches(msg, m.keys.ToggleTheme):
		cmd := m.toggleTheme("")
		return true, m, cmd

	case key.Matches(msg, m.keys.Logout):
		cmd := m.logout()
		return true, m, cmd

	case key.Matches(msg, m.keys.Dismiss):
		toasts := m.deps.Notify.Toasts()
		if len(toasts) == 0 {
			return false, m, nil
		}
		m.deps.Notify.DismissToast(toasts[len(toasts)-1].ID)
		return true, m, nil
	}

	return false, m, nil
}

// capturing reports whether the active screen is taking text input.
func (m Model) capturing() bool {
	switch m.currentView {
	case ViewFeed:
		return m.feedView.Capturing()
	case ViewFriends:
		return m.friendsView.Capturing()
	case ViewSettings:
		return m.settingsView.Capturing()
	}
	return false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin, ViewRegister:
		m.authView, cmd = m.authView.Update(msg)
	case ViewFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	case ViewFriends:
		m.friendsView, cmd = m.friendsView.Update(msg)
	case ViewProfile:
		m.profileView, cmd = m.profileView.Update(msg)
	case ViewNotifications:
		m.notificationsView, cmd = m.notificationsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "socialterm"
	if n := m.unread(); n > 0 {
		title = fmt.Sprintf("socialterm %s", theme.UnreadBadgeStyle.Render(fmt.Sprintf("%d new", n)))
	}
	header := m.layout.RenderHeader(title, m.connectionStatus())

	content := m.renderContent()
	if m.sessionActive {
		content = m.layout.WithOverlay(content, toast.Render(m.deps.Notify.Toasts()))
	}

	return m.layout.RenderWithFrame(
		header,
		m.renderTabs(),
		content,
		m.layout.RenderStatusBar(m.keyHints()),
	)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin, ViewRegister:
		return m.authView.View()
	case ViewFeed:
		return m.feedView.View()
	case ViewFriends:
		return m.friendsView.View()
	case ViewProfile:
		return m.profileView.View()
	case ViewNotifications:
		return m.notificationsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSettings:
		return m.settingsView.View()
	default:
		return ""
	}
}

func (m Model) renderTabs() string {
	if !m.sessionActive {
		return ""
	}

	active := m.currentView
	if active == ViewHelp || active == ViewCommand || active == ViewSettings {
		active = m.previousView
	}

	notifications := "Notifications"
	if n := m.unread(); n > 0 {
		notifications = fmt.Sprintf("Notifications (%d)", n)
	}

	return m.layout.RenderTabs([]ui.Tab{
		{Key: "1", Label: "Feed", Active: active == ViewFeed},
		{Key: "2", Label: "Friends", Active: active == ViewFriends},
		{Key: "3", Label: "Profile", Active: active == ViewProfile},
		{Key: "4", Label: notifications, Active: active == ViewNotifications},
	})
}

func (m Model) unread() int {
	if !m.sessionActive {
		return 0
	}
	return m.deps.Notify.UnreadCount()
}

// connectionStatus returns a short string describing the live connection
// and the unread message count.
func (m Model) connectionStatus() string {
	if !m.sessionActive {
		return "signed out"
	}

	status := "● live"
	switch m.notifyState {
	case notify.Connecting:
		status = "◌ connecting"
	case notify.Disconnected:
		status = "○ offline"
	}

	if n := m.deps.Chat.Unread(); n > 0 {
		status = fmt.Sprintf("✉ %d  %s", n, status)
	}
	if u, ok := m.deps.Session.Principal(); ok {
		status = fmt.Sprintf("%s  %s", u.DisplayName(), status)
	}
	return status
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authErrorMessage != "" && m.sessionActive {
		return m.authErrorMessage
	}
	if m.flash != "" {
		if m.flashErr {
			return "✗ " + m.flash
		}
		return m.flash
	}

	switch m.currentView {
	case ViewLogin, ViewRegister:
		return "enter submit | tab next field | ctrl+r switch | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewSettings:
		return "e edit | enter test connection | esc back"
	case ViewFeed:
		return "n post | l like | s save | enter comments | r refresh | : command | ? help"
	case ViewFriends:
		return "a accept | x decline | / search | tab section | : command | ? help"
	case ViewProfile:
		return "j/k scroll | r refresh | : command | ? help"
	case ViewNotifications:
		return "m mark read | M mark all | enter open | d dismiss toast | ? help"
	default:
		return "q quit | ? help"
	}
}

func (m *Model) setFlash(msg string, isErr bool) {
	m.flash = msg
	m.flashErr = isErr
}

// shutdown stops background work before the program exits.
func (m *Model) shutdown() {
	m.deps.Poller.Stop()
	m.deps.Notify.Disconnect()
}
