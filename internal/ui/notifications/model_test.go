package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/keys"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
)

type fakeSource struct {
	state   notify.State
	history []model.Notification
	calls   []string
	err     error
}

func (f *fakeSource) State() notify.State { return f.state }

func (f *fakeSource) History() []model.Notification { return f.history }

func (f *fakeSource) UnreadCount() int {
	n := 0
	for _, h := range f.history {
		if !h.Read {
			n++
		}
	}
	return n
}

func (f *fakeSource) Refresh(context.Context) error {
	f.calls = append(f.calls, "refresh")
	return f.err
}

func (f *fakeSource) MarkAsRead(_ context.Context, id model.NotificationID) error {
	f.calls = append(f.calls, "read:"+string(id))
	if f.err != nil {
		return f.err
	}
	for i := range f.history {
		if f.history[i].ID == id {
			f.history[i].Read = true
		}
	}
	return nil
}

func (f *fakeSource) MarkAllAsRead(context.Context) error {
	f.calls = append(f.calls, "read-all")
	for i := range f.history {
		f.history[i].Read = true
	}
	return f.err
}

func newFixture() (*fakeSource, Model) {
	now := time.Now()
	src := &fakeSource{
		state: notify.Connected,
		history: []model.Notification{
			{ID: "2", Kind: model.KindLike, SenderID: "bob", Message: "nice", CreatedAt: now},
			{ID: "1", Kind: model.KindFriendRequest, SenderID: "carol", CreatedAt: now.Add(-time.Hour), Read: true},
		},
	}
	return src, New(src, keys.DefaultKeyMap(), 100, 30)
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_View(t *testing.T) {
	src, m := newFixture()

	view := m.View()
	assert.Contains(t, view, "Notifications (1 unread)")
	assert.Contains(t, view, "bob liked your post")
	assert.Contains(t, view, "New Friend Request")
	assert.NotContains(t, view, "connected")

	src.state = notify.Connecting
	assert.Contains(t, m.View(), "connecting")

	src.history = nil
	assert.Contains(t, m.View(), "You're all caught up.")
}

func TestModel_MarkRead(t *testing.T) {
	src, m := newFixture()

	_, cmd := m.Update(keyRune('m'))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	assert.Equal(t, []string{"read:2"}, src.calls)
	assert.Equal(t, 0, src.UnreadCount())

	_, cmd = m.Update(keyRune('m'))
	assert.Nil(t, cmd)
}

func TestModel_MarkReadSkipsRead(t *testing.T) {
	src, m := newFixture()

	m, _ = m.Update(keyRune('j'))
	_, cmd := m.Update(keyRune('m'))

	assert.Nil(t, cmd)
	assert.Empty(t, src.calls)
}

func TestModel_MarkAll(t *testing.T) {
	src, m := newFixture()

	_, cmd := m.Update(keyRune('M'))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	assert.Equal(t, []string{"read-all"}, src.calls)
	assert.Contains(t, m.View(), "All notifications marked as read.")

	_, cmd = m.Update(keyRune('M'))
	assert.Nil(t, cmd)
}

func TestModel_Failure(t *testing.T) {
	src, m := newFixture()
	src.err = notify.ErrNotConnected

	_, cmd := m.Update(keyRune('r'))
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "Not connected to the notification service.")

	src.err = errors.New("boom")
	_, cmd = m.Update(keyRune('m'))
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "boom")
	assert.Equal(t, 1, src.UnreadCount())
}

func TestModel_Open(t *testing.T) {
	src, m := newFixture()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 2)

	batch[0]()
	assert.Equal(t, []string{"read:2"}, src.calls)
	open, ok := batch[1]().(OpenMsg)
	require.True(t, ok)
	assert.Equal(t, model.NotificationID("2"), open.Notification.ID)
}

func TestModel_ChangedClampsCursor(t *testing.T) {
	src, m := newFixture()

	m, _ = m.Update(keyRune('j'))
	assert.Equal(t, 1, m.selectedIdx)

	src.history = src.history[:1]
	m.Changed()
	assert.Equal(t, 0, m.selectedIdx)
}
