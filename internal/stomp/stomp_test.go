package stomp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/notify"
)

var ctx = context.Background()

type frame struct {
	command string
	headers map[string]string
	body    string
}

// broker is a minimal STOMP-over-WebSocket server. It only sends a
// RECEIPT for UNSUBSCRIBE when ackUnsubscribe is set.
type broker struct {
	t              *testing.T
	srv            *httptest.Server
	upgrades       chan http.Header
	frames         chan frame
	conns          chan *websocket.Conn
	ackUnsubscribe atomic.Bool
}

func newBroker(t *testing.T) *broker {
	b := &broker{
		t:        t,
		upgrades: make(chan http.Header, 4),
		frames:   make(chan frame, 16),
		conns:    make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.upgrades <- r.Header.Clone()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- ws
		b.serve(ws)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *broker) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws"
}

func (b *broker) serve(ws *websocket.Conn) {
	var buf bytes.Buffer
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		buf.Write(data)
		for {
			raw, err := buf.ReadString(0)
			if err != nil {
				// Incomplete frame; keep it for the next message.
				rest := raw
				buf.Reset()
				buf.WriteString(rest)
				break
			}
			f := parseFrame(strings.TrimLeft(strings.TrimSuffix(raw, "\x00"), "\r\n"))
			b.frames <- f
			switch f.command {
			case "CONNECT", "STOMP":
				_ = ws.WriteMessage(websocket.TextMessage, []byte("CONNECTED\nversion:1.2\nheart-beat:0,0\nserver:test\n\n\x00"))
			case "DISCONNECT":
				b.receipt(ws, f)
			case "UNSUBSCRIBE":
				if b.ackUnsubscribe.Load() {
					b.receipt(ws, f)
				}
			}
		}
	}
}

func (b *broker) receipt(ws *websocket.Conn, f frame) {
	if r := f.headers["receipt"]; r != "" {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("RECEIPT\nreceipt-id:"+r+"\n\n\x00"))
	}
}

func parseFrame(s string) frame {
	head, body, _ := strings.Cut(s, "\n\n")
	lines := strings.Split(head, "\n")
	f := frame{command: lines[0], headers: map[string]string{}, body: body}
	for _, l := range lines[1:] {
		if k, v, ok := strings.Cut(l, ":"); ok {
			if _, seen := f.headers[k]; !seen {
				f.headers[k] = v
			}
		}
	}
	return f
}

func (b *broker) next(command string) frame {
	b.t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case f := <-b.frames:
			if f.command == command {
				return f
			}
		case <-timeout:
			b.t.Fatalf("no %s frame", command)
		}
	}
}

func publish(ws *websocket.Conn, sub frame, body string) error {
	msg := fmt.Sprintf("MESSAGE\ndestination:%s\nsubscription:%s\nmessage-id:1\ncontent-type:application/json\n\n%s\x00",
		sub.headers["destination"], sub.headers["id"], body)
	return ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func receive(t *testing.T, sub notify.Subscription) notify.Message {
	t.Helper()
	select {
	case m, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
		return notify.Message{}
	}
}

func TestNewDialer(t *testing.T) {
	_, err := NewDialer("http://localhost/ws")
	assert.Error(t, err)

	d, err := NewDialer("wss://example.com:8443/ws", WithHost("vhost"), WithHeartbeat(0))
	require.NoError(t, err)
	assert.Equal(t, "vhost", d.host)
	assert.Zero(t, d.heartbeat)
}

func TestDialer_Dial(t *testing.T) {
	b := newBroker(t)
	b.ackUnsubscribe.Store(true)
	d, err := NewDialer(b.url(), WithHeartbeat(0))
	require.NoError(t, err)

	src, err := d.Dial(ctx, "tok")
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "Bearer tok", (<-b.upgrades).Get("Authorization"))
	connect := b.next("CONNECT")
	assert.Equal(t, "Bearer tok", connect.headers["Authorization"])
	assert.Equal(t, "127.0.0.1", connect.headers["host"])

	sub, err := src.Subscribe("/topic/notifications/u1")
	require.NoError(t, err)
	subFrame := b.next("SUBSCRIBE")
	assert.Equal(t, "/topic/notifications/u1", subFrame.headers["destination"])

	ws := <-b.conns
	require.NoError(t, publish(ws, subFrame, `{"id":1,"type":"LIKE"}`))

	m := receive(t, sub)
	require.NoError(t, m.Err)
	assert.JSONEq(t, `{"id":1,"type":"LIKE"}`, string(m.Body))

	require.NoError(t, sub.Unsubscribe())
	b.next("UNSUBSCRIBE")
	assert.NoError(t, sub.Unsubscribe())
}

func TestDialer_UnsubscribeWithoutReceipt(t *testing.T) {
	b := newBroker(t)
	d, err := NewDialer(b.url(), WithHeartbeat(0), WithUnsubscribeTimeout(50*time.Millisecond))
	require.NoError(t, err)

	src, err := d.Dial(ctx, "tok")
	require.NoError(t, err)
	defer src.Close()

	sub, err := src.Subscribe("/topic/notifications/u1")
	require.NoError(t, err)
	b.next("SUBSCRIBE")

	start := time.Now()
	assert.Error(t, sub.Unsubscribe())
	assert.Less(t, time.Since(start), time.Second)
}

func TestSource_CloseSkipsUnsubscribe(t *testing.T) {
	b := newBroker(t)
	d, err := NewDialer(b.url(), WithHeartbeat(0))
	require.NoError(t, err)

	src, err := d.Dial(ctx, "tok")
	require.NoError(t, err)
	sub, err := src.Subscribe("/topic/notifications/u1")
	require.NoError(t, err)
	b.next("SUBSCRIBE")

	start := time.Now()
	require.NoError(t, src.Close())
	assert.NoError(t, src.Close())
	assert.NoError(t, sub.Unsubscribe())
	assert.Less(t, time.Since(start), time.Second)
}

type staticBackend struct{}

func (staticBackend) FetchHistory(context.Context, string) ([]model.Notification, error) {
	return nil, nil
}

func (staticBackend) MarkRead(context.Context, model.NotificationID) error { return nil }

type staticRecipient string

func (r staticRecipient) RecipientID() (string, error) { return string(r), nil }

func TestChannel_DisconnectDoesNotWaitForReceipt(t *testing.T) {
	b := newBroker(t)
	d, err := NewDialer(b.url(), WithHeartbeat(0))
	require.NoError(t, err)

	ch := notify.NewChannel(d, staticBackend{}, staticRecipient("u1"), nil)
	require.NoError(t, ch.Connect(ctx))
	b.next("SUBSCRIBE")

	start := time.Now()
	ch.Reset()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, notify.Disconnected, ch.State())
}

func TestDialer_DialWithoutToken(t *testing.T) {
	b := newBroker(t)
	d, err := NewDialer(b.url(), WithHeartbeat(0))
	require.NoError(t, err)

	src, err := d.Dial(ctx, "")
	require.NoError(t, err)
	defer src.Close()

	assert.Empty(t, (<-b.upgrades).Get("Authorization"))
	_, ok := b.next("CONNECT").headers["Authorization"]
	assert.False(t, ok)
}

func TestDialer_BrokerGone(t *testing.T) {
	b := newBroker(t)
	d, err := NewDialer(b.url(), WithHeartbeat(0))
	require.NoError(t, err)

	src, err := d.Dial(ctx, "tok")
	require.NoError(t, err)
	defer src.Close()

	sub, err := src.Subscribe("/topic/notifications/u1")
	require.NoError(t, err)
	b.next("SUBSCRIBE")

	ws := <-b.conns
	require.NoError(t, ws.Close())

	select {
	case m, ok := <-sub.C():
		if ok {
			assert.Error(t, m.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not report the closed transport")
	}
}

func TestDialer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	d, err := NewDialer("ws"+strings.TrimPrefix(srv.URL, "http"), WithHandshakeTimeout(time.Second))
	require.NoError(t, err)

	_, err = d.Dial(ctx, "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
