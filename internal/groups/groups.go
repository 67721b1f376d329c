// Package groups lists and joins groups, and lists and RSVPs to events.
package groups

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
)

// Store caches the groups and events the user belongs to.
type Store struct {
	gw api.Gateway

	mu       sync.RWMutex
	myGroups []model.Group
	myEvents []model.Event
}

func New(gw api.Gateway) *Store {
	return &Store{gw: gw}
}

// MyGroups returns a snapshot of the groups loaded by FetchMyGroups.
func (s *Store) MyGroups() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Group(nil), s.myGroups...)
}

// MyEvents returns a snapshot of the events loaded by FetchMyEvents.
func (s *Store) MyEvents() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Event(nil), s.myEvents...)
}

// Groups lists all public groups.
func (s *Store) Groups(ctx context.Context) ([]model.Group, api.Result) {
	var groups []model.Group
	if err := s.gw.Get(ctx, "/groups", &groups); err != nil {
		return nil, api.ResultOf(err)
	}
	return groups, api.OK
}

// FetchMyGroups reloads the groups the user is a member of.
func (s *Store) FetchMyGroups(ctx context.Context) api.Result {
	var groups []model.Group
	if err := s.gw.Get(ctx, "/groups/my", &groups); err != nil {
		return api.ResultOf(err)
	}
	s.mu.Lock()
	s.myGroups = groups
	s.mu.Unlock()
	return api.OK
}

// SearchGroups looks groups up by name. An empty query yields no results.
func (s *Store) SearchGroups(ctx context.Context, query string) ([]model.Group, api.Result) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Group{}, api.OK
	}

	var groups []model.Group
	err := s.gw.Get(ctx, "/groups/search", &groups, api.WithQuery(url.Values{"query": {query}}))
	if err != nil {
		return nil, api.ResultOf(err)
	}
	return groups, api.OK
}

// Join joins groupID and refreshes the membership list.
func (s *Store) Join(ctx context.Context, groupID string) api.Result {
	path := fmt.Sprintf("/groups/%s/join", url.PathEscape(groupID))
	if err := s.gw.Post(ctx, path, nil, nil); err != nil {
		return api.ResultOf(err)
	}
	return s.FetchMyGroups(ctx)
}

// Leave leaves groupID and drops it from the membership list.
func (s *Store) Leave(ctx context.Context, groupID string) api.Result {
	path := fmt.Sprintf("/groups/%s/leave", url.PathEscape(groupID))
	if err := s.gw.Delete(ctx, path, nil); err != nil {
		return api.ResultOf(err)
	}

	s.mu.Lock()
	kept := s.myGroups[:0]
	for _, g := range s.myGroups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	s.myGroups = kept
	s.mu.Unlock()
	return api.OK
}

// Events lists upcoming events.
func (s *Store) Events(ctx context.Context) ([]model.Event, api.Result) {
	var events []model.Event
	if err := s.gw.Get(ctx, "/events", &events); err != nil {
		return nil, api.ResultOf(err)
	}
	return events, api.OK
}

// FetchMyEvents reloads the events the user created or answered.
func (s *Store) FetchMyEvents(ctx context.Context) api.Result {
	var events []model.Event
	if err := s.gw.Get(ctx, "/events/my", &events); err != nil {
		return api.ResultOf(err)
	}
	s.mu.Lock()
	s.myEvents = events
	s.mu.Unlock()
	return api.OK
}

// RSVP answers eventID with status, which must be model.RSVPGoing or
// model.RSVPInterested.
func (s *Store) RSVP(ctx context.Context, eventID, status string) api.Result {
	status = strings.ToUpper(status)
	if status != model.RSVPGoing && status != model.RSVPInterested {
		return api.Result{Message: "Status must be GOING or INTERESTED"}
	}

	path := fmt.Sprintf("/events/%s/rsvp", url.PathEscape(eventID))
	if err := s.gw.Post(ctx, path, map[string]string{"status": status}, nil); err != nil {
		return api.ResultOf(err)
	}
	return api.OK
}

// CancelRSVP withdraws the answer to eventID.
func (s *Store) CancelRSVP(ctx context.Context, eventID string) api.Result {
	path := fmt.Sprintf("/events/%s/rsvp", url.PathEscape(eventID))
	if err := s.gw.Delete(ctx, path, nil); err != nil {
		return api.ResultOf(err)
	}
	return api.OK
}

// Reset drops all cached state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.myGroups = nil
	s.myEvents = nil
}
