package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/model"
)

func at(min int) time.Time {
	return time.Date(2026, 1, 1, 12, min, 0, 0, time.UTC)
}

func ids(ns []model.Notification) []model.NotificationID {
	out := make([]model.NotificationID, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestMergeHistory(t *testing.T) {
	t.Run("union ordered newest first", func(t *testing.T) {
		local := []model.Notification{
			{ID: "3", CreatedAt: at(3)},
			{ID: "1", CreatedAt: at(1)},
		}
		fetched := []model.Notification{
			{ID: "2", CreatedAt: at(2)},
			{ID: "1", CreatedAt: at(1)},
		}

		got := mergeHistory(local, fetched)
		assert.Equal(t, []model.NotificationID{"3", "2", "1"}, ids(got))
	})

	t.Run("fetched content wins", func(t *testing.T) {
		local := []model.Notification{{ID: "1", Message: "stale", CreatedAt: at(1)}}
		fetched := []model.Notification{{ID: "1", Message: "fresh", CreatedAt: at(1)}}

		got := mergeHistory(local, fetched)
		require.Len(t, got, 1)
		assert.Equal(t, "fresh", got[0].Message)
	})

	t.Run("read on either side stays read", func(t *testing.T) {
		local := []model.Notification{
			{ID: "1", Read: true, CreatedAt: at(1)},
			{ID: "2", CreatedAt: at(2)},
		}
		fetched := []model.Notification{
			{ID: "1", CreatedAt: at(1)},
			{ID: "2", Read: true, CreatedAt: at(2)},
		}

		got := mergeHistory(local, fetched)
		require.Len(t, got, 2)
		assert.True(t, got[0].Read)
		assert.True(t, got[1].Read)
		assert.Equal(t, 0, countUnread(got))
	})

	t.Run("keeps local receive time", func(t *testing.T) {
		local := []model.Notification{{ID: "1", ReceivedAt: at(5)}}
		fetched := []model.Notification{{ID: "1", CreatedAt: at(4)}}

		got := mergeHistory(local, fetched)
		require.Len(t, got, 1)
		assert.Equal(t, at(5), got[0].ReceivedAt)
		assert.Equal(t, at(4), got[0].CreatedAt)
	})

	t.Run("duplicate fetched ids collapse", func(t *testing.T) {
		fetched := []model.Notification{
			{ID: "1", Message: "first", CreatedAt: at(1)},
			{ID: "1", Message: "second", CreatedAt: at(1)},
		}

		got := mergeHistory(nil, fetched)
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Message)
	})

	t.Run("falls back to receive time", func(t *testing.T) {
		local := []model.Notification{{ID: "local-a", ReceivedAt: at(10)}}
		fetched := []model.Notification{{ID: "1", CreatedAt: at(1)}}

		got := mergeHistory(local, fetched)
		assert.Equal(t, []model.NotificationID{"local-a", "1"}, ids(got))
	})
}

func TestIndexOf(t *testing.T) {
	ns := []model.Notification{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, 1, indexOf(ns, "b"))
	assert.Equal(t, -1, indexOf(ns, "c"))
}
