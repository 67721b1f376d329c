package notify_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
	"github.com/nhle/socialterm/internal/notify/mock_notify"
	"github.com/nhle/socialterm/internal/testutil"
)

var ctx = context.Background()

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	*notify.Channel
	dialer     *mock_notify.MockDialer
	source     *mock_notify.MockEventSource
	sub        *mock_notify.MockSubscription
	backend    *mock_notify.MockBackend
	recipients *mock_notify.MockRecipientResolver
	msgs       chan notify.Message
	dials      atomic.Int32
}

func newFixture(t *testing.T, opts ...notify.Option) *fixture {
	ctrl := gomock.NewController(t)
	fx := &fixture{
		dialer:     mock_notify.NewMockDialer(ctrl),
		source:     mock_notify.NewMockEventSource(ctrl),
		sub:        mock_notify.NewMockSubscription(ctrl),
		backend:    mock_notify.NewMockBackend(ctrl),
		recipients: mock_notify.NewMockRecipientResolver(ctrl),
		msgs:       make(chan notify.Message, 8),
	}

	opts = append([]notify.Option{notify.WithReconnect(5*time.Millisecond, 20*time.Millisecond)}, opts...)
	fx.Channel = notify.NewChannel(fx.dialer, fx.backend, fx.recipients,
		api.TokenFunc(func() string { return "tok" }), opts...)
	t.Cleanup(fx.Disconnect)
	return fx
}

// expectTransport wires a working broker for recipient "u1".
func (fx *fixture) expectTransport() {
	fx.recipients.EXPECT().RecipientID().Return("u1", nil).AnyTimes()
	fx.dialer.EXPECT().Dial(gomock.Any(), "tok").DoAndReturn(
		func(context.Context, string) (notify.EventSource, error) {
			fx.dials.Add(1)
			return fx.source, nil
		}).AnyTimes()
	fx.source.EXPECT().Subscribe("/topic/notifications/u1").Return(fx.sub, nil).AnyTimes()
	fx.source.EXPECT().Close().Return(nil).AnyTimes()
	fx.sub.EXPECT().C().Return((<-chan notify.Message)(fx.msgs)).AnyTimes()
	fx.sub.EXPECT().Unsubscribe().Return(nil).AnyTimes()
}

func (fx *fixture) expectHistory(ns ...model.Notification) {
	fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").Return(ns, nil).AnyTimes()
}

func (fx *fixture) push(body string) {
	fx.msgs <- notify.Message{Body: []byte(body)}
}

func (fx *fixture) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.Connect(ctx))
	require.Equal(t, notify.Connected, fx.State())
}

func (fx *fixture) waitHistory(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(fx.History()) == n }, waitFor, tick)
}

func waitUpdate(t *testing.T, ch *notify.Channel, kind notify.UpdateKind) notify.Update {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case u := <-ch.Updates():
			if u.Kind == kind {
				return u
			}
		case <-timeout:
			t.Fatalf("no update of kind %d", kind)
		}
	}
}

func history() []model.Notification {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return []model.Notification{
		{ID: "2", Kind: model.KindLike, Message: "liked", CreatedAt: created.Add(time.Minute)},
		{ID: "1", Kind: model.KindComment, Message: "nice", Read: true, CreatedAt: created},
	}
}

func TestChannel_Connect(t *testing.T) {
	t.Run("loads history", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(history()...)

		fx.connect(t)
		fx.waitHistory(t, 2)

		assert.Equal(t, "u1", fx.Recipient())
		assert.Equal(t, 1, fx.UnreadCount())
		assert.Empty(t, fx.Toasts())
	})

	t.Run("connect twice is a no-op", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory()

		fx.connect(t)
		require.NoError(t, fx.Connect(ctx))
		assert.Equal(t, int32(1), fx.dials.Load())
	})

	t.Run("no recipient", func(t *testing.T) {
		fx := newFixture(t)
		fx.recipients.EXPECT().RecipientID().Return("", nil)

		err := fx.Connect(ctx)
		assert.ErrorIs(t, err, notify.ErrNoRecipient)
		assert.Equal(t, notify.Disconnected, fx.State())
	})

	t.Run("recipient error is wrapped", func(t *testing.T) {
		fx := newFixture(t)
		cause := errors.New("not logged in")
		fx.recipients.EXPECT().RecipientID().Return("", cause)

		err := fx.Connect(ctx)
		assert.ErrorIs(t, err, notify.ErrNoRecipient)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("dial failure", func(t *testing.T) {
		fx := newFixture(t)
		fx.recipients.EXPECT().RecipientID().Return("u1", nil)
		fx.expectHistory()
		fx.dialer.EXPECT().Dial(gomock.Any(), "tok").Return(nil, errors.New("refused"))

		err := fx.Connect(ctx)
		var connErr *notify.ConnectError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "u1", connErr.Recipient)
		assert.Equal(t, notify.Disconnected, fx.State())
	})

	t.Run("subscribe failure closes the source", func(t *testing.T) {
		fx := newFixture(t)
		fx.recipients.EXPECT().RecipientID().Return("u1", nil)
		fx.expectHistory()
		fx.dialer.EXPECT().Dial(gomock.Any(), "tok").Return(fx.source, nil)
		fx.source.EXPECT().Subscribe("/topic/notifications/u1").Return(nil, errors.New("denied"))
		fx.source.EXPECT().Close().Return(nil)

		var connErr *notify.ConnectError
		require.ErrorAs(t, fx.Connect(ctx), &connErr)
	})

	t.Run("custom topic prefix", func(t *testing.T) {
		fx := newFixture(t, notify.WithTopicPrefix("/user/queue/"))
		fx.recipients.EXPECT().RecipientID().Return("u1", nil)
		fx.expectHistory()
		fx.dialer.EXPECT().Dial(gomock.Any(), "tok").Return(fx.source, nil)
		fx.source.EXPECT().Subscribe("/user/queue/u1").Return(fx.sub, nil)
		fx.source.EXPECT().Close().Return(nil)
		fx.sub.EXPECT().C().Return((<-chan notify.Message)(fx.msgs))
		fx.sub.EXPECT().Unsubscribe().Return(nil)

		fx.connect(t)
	})
}

func TestChannel_Receive(t *testing.T) {
	t.Run("unseen notification", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(history()...)
		fx.connect(t)
		fx.waitHistory(t, 2)

		fx.push(`{"id":3,"type":"FRIEND_REQUEST","senderId":"bob","message":"hi"}`)
		u := waitUpdate(t, fx.Channel, notify.UpdateNotification)
		require.NotNil(t, u.Notification)
		assert.Equal(t, model.NotificationID("3"), u.Notification.ID)

		got := fx.History()
		require.Len(t, got, 3)
		assert.Equal(t, model.NotificationID("3"), got[0].ID)
		assert.Equal(t, "u1", got[0].RecipientID)
		assert.False(t, got[0].ReceivedAt.IsZero())
		assert.Equal(t, 2, fx.UnreadCount())

		toasts := fx.Toasts()
		require.Len(t, toasts, 1)
		assert.Equal(t, model.NotificationID("3"), toasts[0].Notification.ID)
	})

	t.Run("known id keeps existing entry", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(history()...)
		fx.connect(t)
		fx.waitHistory(t, 2)

		fx.push(`{"id":1,"type":"COMMENT","message":"changed","read":false}`)
		fx.push(`{"id":9,"type":"LIKE"}`)
		fx.waitHistory(t, 3)

		got := fx.History()
		assert.Equal(t, 1, countID(got, "1"))
		for _, n := range got {
			if n.ID == "1" {
				assert.True(t, n.Read)
				assert.Equal(t, "nice", n.Message)
			}
		}
		require.Len(t, fx.Toasts(), 1)
		assert.Equal(t, model.NotificationID("9"), fx.Toasts()[0].Notification.ID)
	})

	t.Run("missing id gets a local one", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory()
		fx.connect(t)

		fx.push(`{"type":"MESSAGE","message":"yo"}`)
		fx.push(`{"type":"MESSAGE","message":"yo"}`)
		fx.waitHistory(t, 2)

		got := fx.History()
		assert.NotEqual(t, got[0].ID, got[1].ID)
		assert.Contains(t, string(got[0].ID), "local-")
	})

	t.Run("malformed body", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory()
		fx.connect(t)

		fx.push(`not json`)
		u := waitUpdate(t, fx.Channel, notify.UpdateError)

		var parseErr *notify.ParseError
		require.ErrorAs(t, u.Err, &parseErr)
		assert.Equal(t, []byte("not json"), parseErr.Body)
		assert.Empty(t, fx.History())
		assert.Equal(t, notify.Connected, fx.State())
	})

	t.Run("toast expires but history stays", func(t *testing.T) {
		fx := newFixture(t, notify.WithToastTTL(20*time.Millisecond))
		fx.expectTransport()
		fx.expectHistory()
		fx.connect(t)

		fx.push(`{"id":5,"type":"LIKE"}`)
		fx.waitHistory(t, 1)
		assert.Eventually(t, func() bool { return len(fx.Toasts()) == 0 }, waitFor, tick)

		assert.Len(t, fx.History(), 1)
		assert.Equal(t, 1, fx.UnreadCount())
	})

	t.Run("dismiss toast", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory()
		fx.connect(t)

		fx.push(`{"id":5,"type":"LIKE"}`)
		require.Eventually(t, func() bool { return len(fx.Toasts()) == 1 }, waitFor, tick)

		fx.DismissToast(fx.Toasts()[0].ID)
		assert.Empty(t, fx.Toasts())
		assert.Len(t, fx.History(), 1)
	})
}

func countID(ns []model.Notification, id model.NotificationID) int {
	c := 0
	for _, n := range ns {
		if n.ID == id {
			c++
		}
	}
	return c
}

func TestChannel_MarkAsRead(t *testing.T) {
	t.Run("marks once", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(history()...)
		fx.connect(t)
		fx.waitHistory(t, 2)

		fx.backend.EXPECT().MarkRead(gomock.Any(), model.NotificationID("2")).Return(nil).Times(1)

		require.NoError(t, fx.MarkAsRead(ctx, "2"))
		require.NoError(t, fx.MarkAsRead(ctx, "2"))
		assert.Zero(t, fx.UnreadCount())
	})

	t.Run("failure leaves state unchanged", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(history()...)
		fx.connect(t)
		fx.waitHistory(t, 2)

		fx.backend.EXPECT().MarkRead(gomock.Any(), model.NotificationID("2")).Return(errors.New("boom"))

		assert.Error(t, fx.MarkAsRead(ctx, "2"))
		assert.Equal(t, 1, fx.UnreadCount())
	})

	t.Run("unknown id", func(t *testing.T) {
		fx := newFixture(t)

		err := fx.MarkAsRead(ctx, "404")
		assert.ErrorIs(t, err, notify.ErrUnknownNotification)
	})

	t.Run("mark all", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(
			model.Notification{ID: "a"},
			model.Notification{ID: "b"},
			model.Notification{ID: "c", Read: true},
		)
		fx.connect(t)
		fx.waitHistory(t, 3)

		fx.backend.EXPECT().MarkRead(gomock.Any(), model.NotificationID("a")).Return(nil)
		fx.backend.EXPECT().MarkRead(gomock.Any(), model.NotificationID("b")).Return(nil)

		require.NoError(t, fx.MarkAllAsRead(ctx))
		assert.Zero(t, fx.UnreadCount())
	})

	t.Run("local id is marked without the server", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(history()...)
		fx.connect(t)
		fx.waitHistory(t, 2)

		fx.push(`{"type":"MESSAGE","message":"yo"}`)
		fx.waitHistory(t, 3)
		local := fx.History()[0].ID
		require.Contains(t, string(local), "local-")

		require.NoError(t, fx.MarkAsRead(ctx, local))
		assert.True(t, fx.History()[0].Read)
		assert.Equal(t, 1, fx.UnreadCount())
	})

	t.Run("mark all continues past a failure", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.expectHistory(
			model.Notification{ID: "a"},
			model.Notification{ID: "b"},
		)
		fx.connect(t)
		fx.waitHistory(t, 2)
		fx.push(`{"type":"MESSAGE"}`)
		fx.waitHistory(t, 3)

		boom := errors.New("boom")
		fx.backend.EXPECT().MarkRead(gomock.Any(), model.NotificationID("a")).Return(boom)
		fx.backend.EXPECT().MarkRead(gomock.Any(), model.NotificationID("b")).Return(nil)

		err := fx.MarkAllAsRead(ctx)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, fx.UnreadCount())
		for _, n := range fx.History() {
			assert.Equal(t, n.ID != "a", n.Read, "id %s", n.ID)
		}
	})
}

func TestChannel_Reconnect(t *testing.T) {
	fx := newFixture(t)
	fx.expectTransport()
	fx.expectHistory()
	fx.connect(t)

	fx.msgs <- notify.Message{Err: errors.New("connection reset")}

	require.Eventually(t, func() bool {
		return fx.dials.Load() == 2 && fx.State() == notify.Connected
	}, waitFor, tick)

	fx.push(`{"id":7,"type":"LIKE"}`)
	fx.waitHistory(t, 1)
}

func TestChannel_Disconnect(t *testing.T) {
	fx := newFixture(t)
	fx.expectTransport()
	fx.expectHistory(history()...)
	fx.connect(t)
	fx.waitHistory(t, 2)

	fx.Disconnect()
	fx.Disconnect()
	assert.Equal(t, notify.Disconnected, fx.State())
	assert.ErrorIs(t, fx.Refresh(ctx), notify.ErrNotConnected)

	fx.push(`{"id":8,"type":"LIKE"}`)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, fx.History(), 2)
}

func TestChannel_PushDuringFetchSurvives(t *testing.T) {
	fx := newFixture(t)
	fx.expectTransport()
	old := model.Notification{ID: "old", Message: "old", CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	release := make(chan struct{})
	fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").DoAndReturn(
		func(context.Context, string) ([]model.Notification, error) {
			<-release
			return []model.Notification{old}, nil
		})

	fx.connect(t)
	fx.push(`{"id":"p1","type":"LIKE"}`)
	fx.waitHistory(t, 1)

	close(release)
	fx.waitHistory(t, 2)

	got := fx.History()
	assert.Equal(t, model.NotificationID("p1"), got[0].ID)
	assert.Equal(t, model.NotificationID("old"), got[1].ID)
}

func TestChannel_FetchAfterDisconnectIsDiscarded(t *testing.T) {
	t.Run("initial fetch", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").DoAndReturn(
			func(ctx context.Context, _ string) ([]model.Notification, error) {
				<-ctx.Done()
				return history(), nil
			})

		fx.connect(t)
		fx.Disconnect()
		assert.Empty(t, fx.History())
	})

	t.Run("refresh", func(t *testing.T) {
		fx := newFixture(t)
		fx.expectTransport()
		first := fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").Return(nil, nil)
		started := make(chan struct{})
		release := make(chan struct{})
		fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").DoAndReturn(
			func(context.Context, string) ([]model.Notification, error) {
				close(started)
				<-release
				return history(), nil
			}).After(first)

		fx.connect(t)
		waitUpdate(t, fx.Channel, notify.UpdateHistory)

		done := make(chan error, 1)
		go func() { done <- fx.Refresh(ctx) }()
		<-started
		fx.Disconnect()
		close(release)

		require.NoError(t, <-done)
		assert.Empty(t, fx.History())
		assert.Zero(t, fx.UnreadCount())
	})
}

func TestChannel_DisconnectCancelsDial(t *testing.T) {
	fx := newFixture(t)
	fx.recipients.EXPECT().RecipientID().Return("u1", nil)
	fx.expectHistory()
	dialing := make(chan struct{})
	fx.dialer.EXPECT().Dial(gomock.Any(), "tok").DoAndReturn(
		func(ctx context.Context, _ string) (notify.EventSource, error) {
			close(dialing)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	done := make(chan error, 1)
	go func() { done <- fx.Connect(ctx) }()
	<-dialing
	fx.Disconnect()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("dial was not cancelled")
	}
	assert.Equal(t, notify.Disconnected, fx.State())
}

func TestChannel_ResetClearsToasts(t *testing.T) {
	fx := newFixture(t)
	fx.expectTransport()
	fx.expectHistory()
	fx.connect(t)

	for i := range 5 {
		fx.push(fmt.Sprintf(`{"id":%d,"type":"LIKE"}`, i))
	}
	fx.Reset()

	ids := map[model.NotificationID]bool{}
	for _, n := range fx.History() {
		ids[n.ID] = true
	}
	for _, toast := range fx.Toasts() {
		assert.True(t, ids[toast.Notification.ID], "toast %s has no history entry", toast.Notification.ID)
	}
}

func TestChannel_Refresh(t *testing.T) {
	fx := newFixture(t)
	fx.expectTransport()
	first := fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").Return(nil, nil)
	fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").Return(history(), nil).After(first)

	fx.connect(t)
	waitUpdate(t, fx.Channel, notify.UpdateHistory)
	assert.Empty(t, fx.History())

	require.NoError(t, fx.Refresh(ctx))
	assert.Len(t, fx.History(), 2)
	assert.Equal(t, 1, fx.UnreadCount())
}

func TestChannel_Cache(t *testing.T) {
	cache := testutil.NewTestStore(t)
	cached := model.Notification{ID: "c1", Message: "cached", CreatedAt: time.Now()}
	require.NoError(t, cache.ReplaceNotifications(ctx, "u1", []model.Notification{cached}))

	fx := newFixture(t, notify.WithCache(cache))
	fx.expectTransport()
	fx.backend.EXPECT().FetchHistory(gomock.Any(), "u1").Return(nil, errors.New("offline")).AnyTimes()

	fx.connect(t)
	got := fx.History()
	require.Len(t, got, 1)
	assert.Equal(t, "cached", got[0].Message)

	fx.push(`{"id":2,"type":"LIKE"}`)
	require.Eventually(t, func() bool {
		ns, err := cache.GetNotifications(ctx, "u1")
		return err == nil && len(ns) == 2
	}, waitFor, tick)

	fx.Reset()
	assert.Empty(t, fx.History())
	assert.Empty(t, fx.Recipient())
	assert.Empty(t, fx.Toasts())

	ns, err := cache.GetNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ns)
}
