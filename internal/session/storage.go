package session

import (
	"context"

	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/store"
)

// SplitStorage keeps the bearer credential in a secret store (the OS
// keyring) and every other key in the state store.
type SplitStorage struct {
	Secrets store.KV
	State   store.KV
}

func (s SplitStorage) route(key string) store.KV {
	if key == model.StorageKeyToken && s.Secrets != nil {
		return s.Secrets
	}
	return s.State
}

func (s SplitStorage) Get(ctx context.Context, key string) (string, error) {
	return s.route(key).Get(ctx, key)
}

func (s SplitStorage) Set(ctx context.Context, key, value string) error {
	return s.route(key).Set(ctx, key, value)
}

func (s SplitStorage) Delete(ctx context.Context, key string) error {
	return s.route(key).Delete(ctx, key)
}
