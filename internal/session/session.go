// Package session holds the authenticated principal and bearer credential,
// persists them across runs and exposes them to the HTTP gateway.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/store"
)

var log = logging.NewNamed("session")

// Gateway is the subset of api.Client the session needs.
type Gateway interface {
	Get(ctx context.Context, path string, result interface{}, opts ...api.RequestOption) error
	Post(ctx context.Context, path string, body, result interface{}, opts ...api.RequestOption) error
}

// ErrNoToken is returned when a login response carries no credential.
var ErrNoToken = errors.New("login response did not include a token")

// Store is the session store. The zero value is not usable; use New.
type Store struct {
	gw      Gateway
	storage store.KV

	mu    sync.RWMutex
	token string
	user  *model.User
}

// New creates an empty session. Call Init to restore a persisted one.
func New(gw Gateway, storage store.KV) *Store {
	return &Store{gw: gw, storage: storage}
}

// Init restores the credential and principal from storage. A principal
// that cannot be decoded is dropped; the credential is kept.
func (s *Store) Init(ctx context.Context) error {
	token, err := s.storage.Get(ctx, model.StorageKeyToken)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("restoring credential: %w", err)
	}

	var user *model.User
	raw, err := s.storage.Get(ctx, model.StorageKeyUser)
	switch {
	case err == nil:
		var u model.User
		if jerr := json.Unmarshal([]byte(raw), &u); jerr != nil {
			log.Warn("dropping unreadable stored user", zap.Error(jerr))
		} else {
			user = &u
		}
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("restoring user: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	log.Debug("session restored", zap.Bool("authenticated", token != ""))
	return nil
}

// Reset clears the session; it is Logout under its lifecycle name.
func (s *Store) Reset(ctx context.Context) error {
	return s.Logout(ctx)
}

// IsAuthenticated reports whether a credential is held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the bearer credential. It implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Principal returns a copy of the current user.
func (s *Store) Principal() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// Login exchanges credentials for a token, loads the profile and persists
// both. State is only mutated once everything has been persisted.
func (s *Store) Login(ctx context.Context, email, password string) api.Result {
	in := loginInput{Email: email, Password: password}
	if err := checkInput(in); err != nil {
		return api.ResultOf(err)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := s.gw.Post(ctx, "/auth/login", in, &resp); err != nil {
		log.Warn("login failed", zap.Error(err))
		return api.ResultOf(err)
	}
	if resp.Token == "" {
		return api.ResultOf(ErrNoToken)
	}

	user, err := s.fetchProfile(ctx, resp.Token)
	if err != nil {
		log.Warn("failed to fetch profile", zap.Error(err))
		user = model.User{Username: email}
	}

	if err := s.persist(ctx, resp.Token, user); err != nil {
		log.Error("failed to persist session", zap.Error(err))
		return api.ResultOf(err)
	}

	s.mu.Lock()
	s.token = resp.Token
	s.user = &user
	s.mu.Unlock()

	log.Info("logged in", zap.String("user", user.DisplayName()))
	return api.OK
}

// Register creates an account. It does not log in.
func (s *Store) Register(ctx context.Context, username, email, password string) api.Result {
	in := registerInput{Username: username, Email: email, Password: password}
	if err := checkInput(in); err != nil {
		return api.ResultOf(err)
	}

	if err := s.gw.Post(ctx, "/auth/register", in, nil); err != nil {
		log.Warn("registration failed", zap.Error(err))
		return api.ResultOf(err)
	}
	return api.OK
}

// ReloadProfile refetches the principal with the current credential.
func (s *Store) ReloadProfile(ctx context.Context) api.Result {
	token := s.Token()
	if token == "" {
		return api.Result{Message: "Not logged in."}
	}

	user, err := s.fetchProfile(ctx, token)
	if err != nil {
		return api.ResultOf(err)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return api.ResultOf(err)
	}
	if err := s.storage.Set(ctx, model.StorageKeyUser, string(data)); err != nil {
		return api.ResultOf(fmt.Errorf("saving user: %w", err))
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return api.OK
}

// Logout clears the in-memory session and the persisted keys. It is
// idempotent.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	err := errors.Join(
		s.storage.Delete(ctx, model.StorageKeyToken),
		s.storage.Delete(ctx, model.StorageKeyUser),
	)
	if err != nil {
		return fmt.Errorf("clearing stored session: %w", err)
	}
	return nil
}

func (s *Store) fetchProfile(ctx context.Context, token string) (model.User, error) {
	var user model.User
	if err := s.gw.Get(ctx, "/users/profile", &user, api.WithToken(token)); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// persist writes the credential and principal. If the principal cannot be
// written, the stored credential is put back to the one held in memory.
func (s *Store) persist(ctx context.Context, token string, user model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	prev := s.Token()
	if err := s.storage.Set(ctx, model.StorageKeyToken, token); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	if err := s.storage.Set(ctx, model.StorageKeyUser, string(data)); err != nil {
		if rerr := s.restoreToken(ctx, prev); rerr != nil {
			log.Error("failed to restore stored credential", zap.Error(rerr))
		}
		return fmt.Errorf("saving user: %w", err)
	}
	return nil
}

func (s *Store) restoreToken(ctx context.Context, prev string) error {
	if prev == "" {
		return s.storage.Delete(ctx, model.StorageKeyToken)
	}
	return s.storage.Set(ctx, model.StorageKeyToken, prev)
}
