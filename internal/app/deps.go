package app

import (
	"context"
	"io"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
	appsync "github.com/nhle/socialterm/internal/sync"
	"github.com/nhle/socialterm/internal/theme"
	configview "github.com/nhle/socialterm/internal/ui/config"
	feedview "github.com/nhle/socialterm/internal/ui/feed"
	friendsview "github.com/nhle/socialterm/internal/ui/friends"
	notificationsview "github.com/nhle/socialterm/internal/ui/notifications"
	profileview "github.com/nhle/socialterm/internal/ui/profile"
)

// Session is the session store as used by the root model.
type Session interface {
	IsAuthenticated() bool
	Principal() (model.User, bool)
	Login(ctx context.Context, email, password string) api.Result
	Register(ctx context.Context, username, email, password string) api.Result
	Logout(ctx context.Context) error
}

// FriendsStore backs the friends screen and the pending-requests job.
type FriendsStore interface {
	friendsview.Store
	Reset()
}

// FeedStore backs the feed and profile screens.
type FeedStore interface {
	feedview.Store
	profileview.Store
	Reset()
}

// ChatStore sends direct messages and tracks the unread count.
type ChatStore interface {
	Send(ctx context.Context, receiverID, content string) (model.Message, api.Result)
	FetchUnreadCount(ctx context.Context) api.Result
	Unread() int
	Reset()
}

// GroupsStore joins groups and answers event invitations.
type GroupsStore interface {
	Join(ctx context.Context, groupID string) api.Result
	Leave(ctx context.Context, groupID string) api.Result
	RSVP(ctx context.Context, eventID, status string) api.Result
	CancelRSVP(ctx context.Context, eventID string) api.Result
	Reset()
}

// MediaStore uploads files.
type MediaStore interface {
	Upload(ctx context.Context, userID, fileName string, r io.Reader) (model.Media, api.Result)
}

// Notifier is the notification channel.
type Notifier interface {
	notificationsview.Source
	Connect(ctx context.Context) error
	Disconnect()
	Reset()
	Updates() <-chan notify.Update
	Toasts() []notify.Toast
	DismissToast(id string)
}

// Deps are the collaborators of the root model.
type Deps struct {
	Session Session
	Friends FriendsStore
	Feed    FeedStore
	Chat    ChatStore
	Groups  GroupsStore
	Media   MediaStore
	Notify  Notifier
	Theme   *theme.Preference
	Poller  *appsync.Poller

	// Config and Settings back the settings screen; it is unavailable when
	// either is nil.
	Config   *model.AppConfig
	Settings configview.Backend
}
