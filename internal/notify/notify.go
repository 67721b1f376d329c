//go:generate mockgen -destination mock_notify/mock_notify.go github.com/nhle/socialterm/internal/notify Dialer,EventSource,Subscription,Backend,RecipientResolver

// Package notify keeps the notification history of the signed-in user in
// sync with the notification service: it loads the history, subscribes to
// live pushes, raises toasts and tracks read state.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/socialterm/internal/model"
)

// Dialer opens an authenticated connection to the push broker.
type Dialer interface {
	Dial(ctx context.Context, token string) (EventSource, error)
}

// EventSource is an open broker connection.
type EventSource interface {
	Subscribe(destination string) (Subscription, error)
	Close() error
}

// Subscription delivers the messages published to one destination. The
// channel is closed, or yields a Message with Err set, when the transport
// fails.
type Subscription interface {
	C() <-chan Message
	Unsubscribe() error
}

// Message is a single frame received on a subscription.
type Message struct {
	Body []byte
	Err  error
}

// Backend is the notification REST API.
type Backend interface {
	FetchHistory(ctx context.Context, recipientID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, id model.NotificationID) error
}

// RecipientResolver names the recipient notifications are addressed to.
type RecipientResolver interface {
	RecipientID() (string, error)
}

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNoRecipient is returned by Connect when no recipient can be derived
	// from the session.
	ErrNoRecipient = errors.New("notify: no recipient identifier")

	// ErrNotConnected is returned by operations that need an open channel.
	ErrNotConnected = errors.New("notify: not connected")

	// ErrUnknownNotification is returned by MarkAsRead for ids not in the
	// history.
	ErrUnknownNotification = errors.New("notify: unknown notification")
)

// ConnectError reports a failure to open or subscribe the transport.
type ConnectError struct {
	Recipient string
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("notify: connecting for %s: %v", e.Recipient, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ParseError reports an inbound frame that is not a notification.
type ParseError struct {
	Body []byte
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("notify: decoding notification: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UpdateKind says what changed.
type UpdateKind int

const (
	UpdateState UpdateKind = iota
	UpdateHistory
	UpdateNotification
	UpdateToasts
	UpdateError
)

// Update is emitted on Channel.Updates whenever observable state changes.
// Receivers re-read the state they need from the Channel.
type Update struct {
	Kind  UpdateKind
	State State

	// Notification is set for UpdateNotification.
	Notification *model.Notification

	// Err is set for UpdateError.
	Err error
}
