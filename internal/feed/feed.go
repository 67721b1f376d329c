// Package feed loads and mutates the news feed: posts over GraphQL, and
// likes, comments, saved posts and stories over REST.
package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/graphql"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
)

var log = logging.NewNamed("feed")

// GraphQL sends a single GraphQL operation.
type GraphQL interface {
	Do(ctx context.Context, req graphql.Request, data interface{}) error
}

// Store caches the current feed.
type Store struct {
	gw  api.Gateway
	gql GraphQL

	mu    sync.RWMutex
	posts []model.Post
	saved map[string]bool
	err   string
}

func New(gw api.Gateway, gql GraphQL) *Store {
	return &Store{gw: gw, gql: gql, saved: make(map[string]bool)}
}

// Posts returns a snapshot of the loaded feed, newest first.
func (s *Store) Posts() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Post(nil), s.posts...)
}

// Err returns the message of the last failed FetchFeed.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// IsSaved reports whether postID is in the saved list loaded by FetchSaved
// or toggled since.
func (s *Store) IsSaved(postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saved[postID]
}

// FetchFeed reloads the feed.
func (s *Store) FetchFeed(ctx context.Context) api.Result {
	var data struct {
		GetFeed []model.Post `json:"getFeed"`
	}
	err := s.gql.Do(ctx, graphql.Request{OperationName: "getFeed", Query: queryGetFeed}, &data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn("failed to fetch feed", zap.Error(err))
		s.err = api.Classify(err)
		return api.ResultOf(err)
	}
	s.posts = data.GetFeed
	s.err = ""
	return api.OK
}

// UserPosts returns the posts written by authorID.
func (s *Store) UserPosts(ctx context.Context, authorID string) ([]model.Post, api.Result) {
	var data struct {
		GetUserPosts []model.Post `json:"getUserPosts"`
	}
	err := s.gql.Do(ctx, graphql.Request{
		OperationName: "getUserPosts",
		Query:         queryGetUserPosts,
		Variables:     map[string]interface{}{"authorId": authorID},
	}, &data)
	if err != nil {
		return nil, api.ResultOf(err)
	}
	return data.GetUserPosts, api.OK
}

// CreatePost publishes a post and prepends it to the feed.
func (s *Store) CreatePost(ctx context.Context, content, imageURL string) api.Result {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		return api.Result{Message: "Post cannot be empty."}
	}

	vars := map[string]interface{}{"content": content}
	if imageURL != "" {
		vars["imageUrl"] = imageURL
	}

	var data struct {
		CreatePost model.Post `json:"createPost"`
	}
	err := s.gql.Do(ctx, graphql.Request{
		OperationName: "createPost",
		Query:         mutationCreatePost,
		Variables:     vars,
	}, &data)
	if err != nil {
		log.Warn("failed to create post", zap.Error(err))
		return api.ResultOf(err)
	}

	s.mu.Lock()
	s.posts = append([]model.Post{data.CreatePost}, s.posts...)
	s.mu.Unlock()
	return api.OK
}

// Me returns the profile of the authenticated user from the user service.
func (s *Store) Me(ctx context.Context) (model.User, api.Result) {
	var data struct {
		Me model.User `json:"me"`
	}
	if err := s.gql.Do(ctx, graphql.Request{OperationName: "me", Query: queryMe}, &data); err != nil {
		return model.User{}, api.ResultOf(err)
	}
	return data.Me, api.OK
}

// User returns the profile of userID.
func (s *Store) User(ctx context.Context, userID string) (model.User, api.Result) {
	var data struct {
		GetUser model.User `json:"getUser"`
	}
	err := s.gql.Do(ctx, graphql.Request{
		OperationName: "getUser",
		Query:         queryGetUser,
		Variables:     map[string]interface{}{"id": userID},
	}, &data)
	if err != nil {
		return model.User{}, api.ResultOf(err)
	}
	return data.GetUser, api.OK
}

// Like likes postID and updates its counter in the loaded feed.
func (s *Store) Like(ctx context.Context, postID string) api.Result {
	var status model.LikeStatus
	if err := s.gw.Post(ctx, likePath(postID), nil, &status); err != nil {
		return api.ResultOf(err)
	}
	s.setLikes(postID, status.LikesCount)
	return api.OK
}

// Unlike removes the like on postID.
func (s *Store) Unlike(ctx context.Context, postID string) api.Result {
	var status model.LikeStatus
	if err := s.gw.Delete(ctx, likePath(postID), &status); err != nil {
		return api.ResultOf(err)
	}
	s.setLikes(postID, status.LikesCount)
	return api.OK
}

// LikeStatus reports whether the current user likes postID.
func (s *Store) LikeStatus(ctx context.Context, postID string) (model.LikeStatus, api.Result) {
	var status model.LikeStatus
	if err := s.gw.Get(ctx, likePath(postID)+"/status", &status); err != nil {
		return model.LikeStatus{}, api.ResultOf(err)
	}
	return status, api.OK
}

// Comments lists the comments on postID.
func (s *Store) Comments(ctx context.Context, postID string) ([]model.Comment, api.Result) {
	var comments []model.Comment
	if err := s.gw.Get(ctx, commentsPath(postID), &comments); err != nil {
		return nil, api.ResultOf(err)
	}
	return comments, api.OK
}

// AddComment comments on postID and bumps its counter in the loaded feed.
func (s *Store) AddComment(ctx context.Context, postID, content string) (model.Comment, api.Result) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Comment{}, api.Result{Message: "Comment cannot be empty."}
	}

	var comment model.Comment
	if err := s.gw.Post(ctx, commentsPath(postID), map[string]string{"content": content}, &comment); err != nil {
		return model.Comment{}, api.ResultOf(err)
	}

	s.mu.Lock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].CommentsCount++
		}
	}
	s.mu.Unlock()
	return comment, api.OK
}

// Save bookmarks postID.
func (s *Store) Save(ctx context.Context, postID string) api.Result {
	if err := s.gw.Post(ctx, savedPath(postID), nil, nil); err != nil {
		return api.ResultOf(err)
	}
	s.mu.Lock()
	s.saved[postID] = true
	s.mu.Unlock()
	return api.OK
}

// Unsave removes the bookmark on postID.
func (s *Store) Unsave(ctx context.Context, postID string) api.Result {
	if err := s.gw.Delete(ctx, savedPath(postID), nil); err != nil {
		return api.ResultOf(err)
	}
	s.mu.Lock()
	delete(s.saved, postID)
	s.mu.Unlock()
	return api.OK
}

// FetchSaved returns the saved posts and refreshes the saved set.
func (s *Store) FetchSaved(ctx context.Context) ([]model.Post, api.Result) {
	var posts []model.Post
	if err := s.gw.Get(ctx, "/feed/saved", &posts); err != nil {
		return nil, api.ResultOf(err)
	}

	s.mu.Lock()
	s.saved = make(map[string]bool, len(posts))
	for _, p := range posts {
		s.saved[p.ID] = true
	}
	s.mu.Unlock()
	return posts, api.OK
}

// Stories returns the active stories.
func (s *Store) Stories(ctx context.Context) ([]model.Story, api.Result) {
	var stories []model.Story
	if err := s.gw.Get(ctx, "/feed/stories", &stories); err != nil {
		return nil, api.ResultOf(err)
	}
	return stories, api.OK
}

// Reset drops all cached state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = nil
	s.saved = make(map[string]bool)
	s.err = ""
}

func (s *Store) setLikes(postID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == postID {
			s.posts[i].LikesCount = count
		}
	}
}

func likePath(postID string) string {
	return fmt.Sprintf("/feed/posts/%s/like", url.PathEscape(postID))
}

func commentsPath(postID string) string {
	return fmt.Sprintf("/feed/posts/%s/comments", url.PathEscape(postID))
}

func savedPath(postID string) string {
	return fmt.Sprintf("/feed/saved/%s", url.PathEscape(postID))
}
