// Package stomp implements the notification transport: STOMP frames over a
// WebSocket connection to the notification service's broker.
package stomp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	gostomp "github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/notify"
)

var log = logging.NewNamed("stomp")

const (
	defaultHandshakeTimeout   = 10 * time.Second
	defaultHeartbeat          = 10 * time.Second
	defaultUnsubscribeTimeout = 2 * time.Second
)

// Option configures a Dialer.
type Option func(*Dialer)

// WithHeartbeat sets the STOMP heart-beat interval in both directions.
// Zero disables heart-beating.
func WithHeartbeat(d time.Duration) Option {
	return func(dl *Dialer) { dl.heartbeat = d }
}

// WithHandshakeTimeout bounds the WebSocket upgrade.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(dl *Dialer) {
		if d > 0 {
			dl.ws.HandshakeTimeout = d
		}
	}
}

// WithUnsubscribeTimeout bounds the wait for the broker's receipt to an
// UNSUBSCRIBE sent on a connection that stays open.
func WithUnsubscribeTimeout(d time.Duration) Option {
	return func(dl *Dialer) {
		if d > 0 {
			dl.unsubscribeTimeout = d
		}
	}
}

// WithHost overrides the STOMP virtual host sent in CONNECT.
func WithHost(host string) Option {
	return func(dl *Dialer) { dl.host = host }
}

// Dialer opens STOMP sessions on a WebSocket broker URL
// (e.g. ws://localhost:5173/ws).
type Dialer struct {
	url                string
	host               string
	heartbeat          time.Duration
	unsubscribeTimeout time.Duration
	ws                 *websocket.Dialer
}

var _ notify.Dialer = (*Dialer)(nil)

// NewDialer validates brokerURL and returns a Dialer for it.
func NewDialer(brokerURL string, opts ...Option) (*Dialer, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parsing broker url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("broker url %q: scheme must be ws or wss", brokerURL)
	}

	d := &Dialer{
		url:                u.String(),
		host:               u.Hostname(),
		heartbeat:          defaultHeartbeat,
		unsubscribeTimeout: defaultUnsubscribeTimeout,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dial upgrades to a WebSocket and performs the STOMP handshake. A
// non-empty token is sent as a bearer credential on both.
func (d *Dialer) Dial(ctx context.Context, token string) (notify.EventSource, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	ws, resp, err := d.ws.DialContext(ctx, d.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake %s: %s: %w", d.url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket handshake %s: %w", d.url, err)
	}

	opts := []func(*gostomp.Conn) error{
		gostomp.ConnOpt.Host(d.host),
		gostomp.ConnOpt.HeartBeat(d.heartbeat, d.heartbeat),
		gostomp.ConnOpt.UnsubscribeReceiptTimeout(d.unsubscribeTimeout),
	}
	if token != "" {
		opts = append(opts, gostomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}

	conn, err := gostomp.Connect(newWSConn(ws), opts...)
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("stomp connect: %w", err)
	}

	log.Debug("connected", zap.String("url", d.url), zap.String("server", conn.Server()))
	return &source{conn: conn}, nil
}

type source struct {
	conn   *gostomp.Conn
	closed atomic.Bool
}

func (s *source) Subscribe(destination string) (notify.Subscription, error) {
	sub, err := s.conn.Subscribe(destination, gostomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", destination, err)
	}

	out := &subscription{
		src:  s,
		sub:  sub,
		c:    make(chan notify.Message),
		done: make(chan struct{}),
	}
	go out.pump()
	return out, nil
}

// Close drops the connection without waiting for a receipt, so it never
// blocks on a broker that has already gone away. Subscriptions end with
// the connection.
func (s *source) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.MustDisconnect()
}

type subscription struct {
	src  *source
	sub  *gostomp.Subscription
	c    chan notify.Message
	done chan struct{}
	once sync.Once
}

func (s *subscription) C() <-chan notify.Message {
	return s.c
}

// pump converts broker messages until the subscription ends. A transport
// failure arrives as a message with Err set, after which the broker
// channel is closed.
func (s *subscription) pump() {
	defer close(s.c)
	for m := range s.sub.C {
		msg := notify.Message{Body: m.Body, Err: m.Err}
		select {
		case s.c <- msg:
		case <-s.done:
			return
		}
	}
}

// Unsubscribe stops delivery. UNSUBSCRIBE is only sent while the
// connection is open; a closed connection has no subscriptions left.
func (s *subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if !s.src.closed.Load() && s.sub.Active() {
			err = s.sub.Unsubscribe()
		}
	})
	return err
}
