// Package friends manages the friend list, incoming friend requests and
// user search.
package friends

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
)

var log = logging.NewNamed("friends")

const (
	msgFetchFailed  = "Failed to fetch friends"
	msgSendFailed   = "Failed to send request"
	msgAcceptFailed = "Failed to accept request"
	msgRejectFailed = "Failed to reject request"
)

// Store holds the friend list and pending requests of the current user.
type Store struct {
	gw api.Gateway

	mu      sync.RWMutex
	friends []model.User
	pending []model.FriendRequest
	loading bool
	err     string
}

func New(gw api.Gateway) *Store {
	return &Store{gw: gw}
}

// Friends returns a snapshot of the friend list.
func (s *Store) Friends() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User(nil), s.friends...)
}

// Pending returns a snapshot of incoming friend requests.
func (s *Store) Pending() []model.FriendRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.FriendRequest(nil), s.pending...)
}

// Loading reports whether FetchFriends is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the message of the last failed FetchFriends, if any.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// FetchFriends reloads the friend list.
func (s *Store) FetchFriends(ctx context.Context) api.Result {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var friends []model.User
	err := s.gw.Get(ctx, "/friends", &friends)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		res := api.ResultOr(err, msgFetchFailed)
		s.err = res.Message
		return res
	}
	s.friends = friends
	s.err = ""
	return api.OK
}

// FetchPendingRequests reloads incoming requests. Failures keep the
// previous list.
func (s *Store) FetchPendingRequests(ctx context.Context) api.Result {
	var pending []model.FriendRequest
	if err := s.gw.Get(ctx, "/friends/requests", &pending); err != nil {
		log.Warn("failed to fetch pending requests", zap.Error(err))
		return api.ResultOf(err)
	}

	s.mu.Lock()
	s.pending = pending
	s.mu.Unlock()
	return api.OK
}

// SendRequest asks userID to become a friend.
func (s *Store) SendRequest(ctx context.Context, userID string) api.Result {
	path := fmt.Sprintf("/friends/request/%s", url.PathEscape(userID))
	if err := s.gw.Post(ctx, path, nil, nil); err != nil {
		return api.ResultOr(err, msgSendFailed)
	}
	return api.OK
}

// Accept accepts a friendship request and refreshes both lists.
func (s *Store) Accept(ctx context.Context, friendshipID string) api.Result {
	path := fmt.Sprintf("/friends/accept/%s", url.PathEscape(friendshipID))
	if err := s.gw.Put(ctx, path, nil, nil); err != nil {
		log.Warn("accept failed", zap.String("id", friendshipID), zap.Error(err))
		return api.Result{Message: msgAcceptFailed}
	}

	s.FetchPendingRequests(ctx)
	s.FetchFriends(ctx)
	return api.OK
}

// Reject declines a friendship request and refreshes the pending list.
func (s *Store) Reject(ctx context.Context, friendshipID string) api.Result {
	path := fmt.Sprintf("/friends/reject/%s", url.PathEscape(friendshipID))
	if err := s.gw.Delete(ctx, path, nil); err != nil {
		log.Warn("reject failed", zap.String("id", friendshipID), zap.Error(err))
		return api.Result{Message: msgRejectFailed}
	}

	s.FetchPendingRequests(ctx)
	return api.OK
}

// Search looks users up by username. An empty query or a failed request
// yields no results.
func (s *Store) Search(ctx context.Context, query string) []model.User {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.User{}
	}

	var users []model.User
	err := s.gw.Get(ctx, "/users/search", &users, api.WithQuery(url.Values{"query": {query}}))
	if err != nil {
		log.Warn("search failed", zap.String("query", query), zap.Error(err))
		return []model.User{}
	}
	if users == nil {
		users = []model.User{}
	}
	return users
}

// Reset drops all cached state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.friends = nil
	s.pending = nil
	s.loading = false
	s.err = ""
}
