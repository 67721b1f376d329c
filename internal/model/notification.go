package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotificationKind classifies a notification by the activity that caused it.
type NotificationKind string

const (
	KindMessage       NotificationKind = "message"
	KindFriendRequest NotificationKind = "friend-request"
	KindLike          NotificationKind = "like"
	KindComment       NotificationKind = "comment"
	KindReminder      NotificationKind = "reminder"
	KindPost          NotificationKind = "post"
	KindOther         NotificationKind = "other"
)

// ParseNotificationKind normalizes the kind names used by the backend
// (e.g. "FRIEND_REQUEST", "POST_CREATED") and by the client ("friend-request").
func ParseNotificationKind(s string) NotificationKind {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "_", "-")

	switch norm {
	case "message", "chat", "new-message":
		return KindMessage
	case "friend-request":
		return KindFriendRequest
	case "like", "post-like":
		return KindLike
	case "comment":
		return KindComment
	case "reminder", "event-reminder":
		return KindReminder
	case "post", "post-created":
		return KindPost
	default:
		return KindOther
	}
}

// NotificationID is a server-assigned notification identifier. The
// notification service emits numeric ids; other producers use strings.
type NotificationID string

// UnmarshalJSON accepts both JSON numbers and JSON strings.
func (id *NotificationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding notification id: %w", err)
		}
		*id = NotificationID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding notification id: %w", err)
	}
	*id = NotificationID(n.String())
	return nil
}

// Notification is a single event pushed by the notification service or
// returned by the history endpoint.
type Notification struct {
	// ID is unique per notification and assigned by the server.
	ID NotificationID `json:"id"`

	Kind        NotificationKind `json:"type"`
	SenderID    string           `json:"senderId,omitempty"`
	RecipientID string           `json:"recipientId,omitempty"`
	Message     string           `json:"message"`

	// ResourceID points at the post, message or event the notification is about.
	ResourceID string `json:"resourceId,omitempty"`

	Read bool `json:"read"`

	// CreatedAt is the server timestamp; zero when the producer omitted it.
	CreatedAt time.Time `json:"createdAt"`

	// ReceivedAt is stamped locally when the event reaches the client.
	ReceivedAt time.Time `json:"receivedAt"`
}

// notificationWire mirrors the JSON produced by the notification service.
// The service serializes the read flag as "read" or "isRead" depending on
// the serializer, and timestamps as RFC 3339 strings or epoch milliseconds.
type notificationWire struct {
	ID          NotificationID  `json:"id"`
	Type        string          `json:"type"`
	Kind        string          `json:"kind"`
	SenderID    string          `json:"senderId"`
	RecipientID string          `json:"recipientId"`
	Message     string          `json:"message"`
	ResourceID  string          `json:"resourceId"`
	Read        *bool           `json:"read"`
	IsRead      *bool           `json:"isRead"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	ReceivedAt  *time.Time      `json:"receivedAt"`
}

// UnmarshalJSON decodes the wire format, normalizing kind, id and timestamps.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w notificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	kind := w.Type
	if kind == "" {
		kind = w.Kind
	}

	*n = Notification{
		ID:          w.ID,
		Kind:        ParseNotificationKind(kind),
		SenderID:    w.SenderID,
		RecipientID: w.RecipientID,
		Message:     w.Message,
		ResourceID:  w.ResourceID,
	}

	switch {
	case w.Read != nil:
		n.Read = *w.Read
	case w.IsRead != nil:
		n.Read = *w.IsRead
	}

	createdAt, err := parseTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("decoding createdAt: %w", err)
	}
	n.CreatedAt = createdAt

	if w.ReceivedAt != nil {
		n.ReceivedAt = *w.ReceivedAt
	}

	return nil
}

// parseTimestamp handles RFC 3339 strings, zone-less ISO local date-times
// and epoch milliseconds. Empty input yields the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, nil
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// SortTime is the timestamp used to order notifications newest-first.
func (n Notification) SortTime() time.Time {
	if !n.CreatedAt.IsZero() {
		return n.CreatedAt
	}
	return n.ReceivedAt
}

// Title returns the headline shown for this notification in toasts.
func (n Notification) Title() string {
	sender := n.senderName()

	switch n.Kind {
	case KindMessage:
		return fmt.Sprintf("New message from %s", sender)
	case KindFriendRequest:
		return "New Friend Request"
	case KindLike:
		return fmt.Sprintf("%s liked your post", sender)
	case KindComment:
		return fmt.Sprintf("%s commented on your post", sender)
	case KindReminder:
		return "Event Reminder"
	case KindPost:
		return "Post published"
	default:
		return "Notification"
	}
}

// Body returns the secondary line of a toast, truncated for previews.
func (n Notification) Body() string {
	switch n.Kind {
	case KindFriendRequest:
		if n.Message != "" {
			return n.Message
		}
		return fmt.Sprintf("%s sent you a friend request", n.senderName())
	case KindLike, KindComment:
		return truncate(n.Message, 50)
	default:
		return n.Message
	}
}

func (n Notification) senderName() string {
	if n.SenderID == "" {
		return "Someone"
	}
	return n.SenderID
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
