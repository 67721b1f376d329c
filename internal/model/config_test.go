package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:5173/api", cfg.API.BaseURL)
		assert.Equal(t, 5, cfg.Realtime.ToastTTLSec)
		assert.Equal(t, "/topic/notifications/", cfg.Realtime.TopicPrefix)
		assert.Equal(t, "user", cfg.GraphQL.Operations["me"])
		assert.Len(t, cfg.Proxy.Routes, 5)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		data := []byte(`
api:
  base_url: https://social.example.com/api
realtime:
  toast_ttl_sec: 9
display:
  theme: dark
`)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "https://social.example.com/api", cfg.API.BaseURL)
		assert.Equal(t, 9, cfg.Realtime.ToastTTLSec)
		assert.Equal(t, "dark", cfg.Display.Theme)
		assert.Equal(t, 30, cfg.API.TimeoutSec)
		assert.NotEmpty(t, cfg.GraphQL.Endpoints["feed"])
	})

	t.Run("save and reload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")
		cfg := defaultAppConfig()
		cfg.API.BaseURL = "http://api.test"
		require.NoError(t, SaveConfig(path, cfg))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://api.test", loaded.API.BaseURL)
	})
}
