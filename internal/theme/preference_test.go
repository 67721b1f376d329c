package theme

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/testutil"
)

var ctx = context.Background()

func TestPreference_Load(t *testing.T) {
	t.Run("saved mode wins", func(t *testing.T) {
		kv := testutil.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, "theme", "light"))

		p := NewPreference(kv)
		p.detect = func() bool { return true }
		require.NoError(t, p.Load(ctx))
		assert.Equal(t, Light, p.Mode())
	})

	t.Run("system preference when unset", func(t *testing.T) {
		p := NewPreference(testutil.NewMemoryKV())
		p.detect = func() bool { return false }
		require.NoError(t, p.Load(ctx))
		assert.Equal(t, Light, p.Mode())

		p.detect = func() bool { return true }
		require.NoError(t, p.Load(ctx))
		assert.Equal(t, Dark, p.Mode())
	})

	t.Run("garbage value ignored", func(t *testing.T) {
		kv := testutil.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, "theme", "sepia"))

		p := NewPreference(kv)
		p.detect = func() bool { return true }
		require.NoError(t, p.Load(ctx))
		assert.Equal(t, Dark, p.Mode())
	})
}

func TestPreference_Toggle(t *testing.T) {
	kv := testutil.NewMemoryKV()
	p := NewPreference(kv)
	p.detect = func() bool { return true }
	require.NoError(t, p.Load(ctx))

	require.NoError(t, p.Toggle(ctx))
	assert.Equal(t, Light, p.Mode())
	saved, err := kv.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", saved)

	require.NoError(t, p.Toggle(ctx))
	assert.True(t, p.IsDark())
}

func TestPreference_SetErrors(t *testing.T) {
	kv := testutil.NewMemoryKV()
	p := NewPreference(kv)

	assert.Error(t, p.Set(ctx, "sepia"))

	kv.SetErr = errors.New("disk full")
	err := p.Set(ctx, Light)
	assert.ErrorIs(t, err, kv.SetErr)
	assert.Equal(t, Light, p.Mode())
}
