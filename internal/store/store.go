package store

import (
	"context"
	"errors"

	"github.com/nhle/socialterm/internal/model"
)

// ErrNotFound is returned by Get when the key has never been set or has
// been deleted.
var ErrNotFound = errors.New("store: key not found")

// KV is a durable string key-value store for client state
// (credential, principal, theme).
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NotificationCache keeps the last known notification history per
// recipient so it can be shown before the first fetch completes.
type NotificationCache interface {
	ReplaceNotifications(ctx context.Context, recipientID string, ns []model.Notification) error
	GetNotifications(ctx context.Context, recipientID string) ([]model.Notification, error)
	ClearNotifications(ctx context.Context) error
}

// Store defines the local persistence interface.
type Store interface {
	KV
	NotificationCache
	Close() error
}
