// Package chat sends and lists direct messages.
package chat

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
)

// Store caches conversations and the unread message count.
type Store struct {
	gw api.Gateway

	mu            sync.RWMutex
	conversations []model.Conversation
	unread        int
}

func New(gw api.Gateway) *Store {
	return &Store{gw: gw}
}

// Conversations returns a snapshot of the loaded conversation list.
func (s *Store) Conversations() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Conversation(nil), s.conversations...)
}

// Unread returns the last fetched unread message count.
func (s *Store) Unread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Send sends content to receiverID.
func (s *Store) Send(ctx context.Context, receiverID, content string) (model.Message, api.Result) {
	content = strings.TrimSpace(content)
	if receiverID == "" || content == "" {
		return model.Message{}, api.Result{Message: "receiverId and content are required"}
	}

	var msg model.Message
	body := map[string]string{"receiverId": receiverID, "content": content}
	if err := s.gw.Post(ctx, "/messages/send", body, &msg); err != nil {
		return model.Message{}, api.ResultOf(err)
	}
	return msg, api.OK
}

// Conversation returns the messages exchanged with partnerID. The server
// marks incoming ones as read.
func (s *Store) Conversation(ctx context.Context, partnerID string) ([]model.Message, api.Result) {
	var msgs []model.Message
	path := fmt.Sprintf("/messages/conversation/%s", url.PathEscape(partnerID))
	if err := s.gw.Get(ctx, path, &msgs); err != nil {
		return nil, api.ResultOf(err)
	}

	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].PartnerID == partnerID {
			s.conversations[i].Unread = false
		}
	}
	s.mu.Unlock()
	return msgs, api.OK
}

// FetchConversations reloads the latest message per partner.
func (s *Store) FetchConversations(ctx context.Context) api.Result {
	var convs []model.Conversation
	if err := s.gw.Get(ctx, "/messages/conversations", &convs); err != nil {
		return api.ResultOf(err)
	}

	s.mu.Lock()
	s.conversations = convs
	s.mu.Unlock()
	return api.OK
}

// FetchUnreadCount reloads the number of unread messages.
func (s *Store) FetchUnreadCount(ctx context.Context) api.Result {
	var resp struct {
		Count int `json:"count"`
	}
	if err := s.gw.Get(ctx, "/messages/unread/count", &resp); err != nil {
		return api.ResultOf(err)
	}

	s.mu.Lock()
	s.unread = resp.Count
	s.mu.Unlock()
	return api.OK
}

// Reset drops all cached state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = nil
	s.unread = 0
}
