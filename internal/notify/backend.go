package notify

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
)

// HTTPBackend is the Backend served by the notification REST API.
type HTTPBackend struct {
	gw api.Gateway
}

func NewHTTPBackend(gw api.Gateway) *HTTPBackend {
	return &HTTPBackend{gw: gw}
}

// FetchHistory loads every notification addressed to recipientID.
func (b *HTTPBackend) FetchHistory(ctx context.Context, recipientID string) ([]model.Notification, error) {
	var ns []model.Notification
	err := b.gw.Get(ctx, "/notifications", &ns, api.WithQuery(url.Values{"userId": {recipientID}}))
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return ns, nil
}

// MarkRead flags id as read on the server.
func (b *HTTPBackend) MarkRead(ctx context.Context, id model.NotificationID) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(string(id)))
	if err := b.gw.Put(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}
