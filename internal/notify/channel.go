package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
	"github.com/nhle/socialterm/internal/store"
)

var log = logging.NewNamed("notify")

const (
	defaultTopicPrefix  = "/topic/notifications/"
	defaultReconnectMin = 500 * time.Millisecond
	defaultReconnectMax = 30 * time.Second
	updateBuffer        = 64

	// localIDPrefix marks ids assigned to pushes that arrived without one.
	// The server does not know them.
	localIDPrefix = "local-"
)

// Option configures a Channel.
type Option func(*Channel)

// WithTopicPrefix sets the destination prefix the recipient id is appended to.
func WithTopicPrefix(prefix string) Option {
	return func(c *Channel) {
		if prefix != "" {
			c.topicPrefix = prefix
		}
	}
}

// WithToastTTL sets how long toasts stay visible.
func WithToastTTL(ttl time.Duration) Option {
	return func(c *Channel) { c.toastTTL = ttl }
}

// WithReconnect sets the reconnect backoff bounds.
func WithReconnect(min, max time.Duration) Option {
	return func(c *Channel) {
		if min > 0 {
			c.reconnectMin = min
		}
		if max >= c.reconnectMin {
			c.reconnectMax = max
		}
	}
}

// WithCache persists the history so it is shown before the first fetch
// completes.
func WithCache(cache store.NotificationCache) Option {
	return func(c *Channel) { c.cache = cache }
}

// Channel is the client side of the notification service.
type Channel struct {
	dialer     Dialer
	backend    Backend
	recipients RecipientResolver
	tokens     api.TokenSource
	cache      store.NotificationCache

	topicPrefix  string
	toastTTL     time.Duration
	reconnectMin time.Duration
	reconnectMax time.Duration

	toasts  *ToastQueue
	updates chan Update

	// persistMu serializes cache writes so the last write holds the
	// latest snapshot.
	persistMu sync.Mutex
	wg        sync.WaitGroup

	mu        sync.Mutex
	state     State
	epoch     uint64
	recipient string
	cancel    context.CancelFunc
	source    EventSource
	sub       Subscription
	history   []model.Notification
}

// NewChannel creates a disconnected Channel.
func NewChannel(
	dialer Dialer,
	backend Backend,
	recipients RecipientResolver,
	tokens api.TokenSource,
	opts ...Option,
) *Channel {
	c := &Channel{
		dialer:       dialer,
		backend:      backend,
		recipients:   recipients,
		tokens:       tokens,
		topicPrefix:  defaultTopicPrefix,
		toastTTL:     DefaultToastTTL,
		reconnectMin: defaultReconnectMin,
		reconnectMax: defaultReconnectMax,
		updates:      make(chan Update, updateBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.toasts = NewToastQueue(c.toastTTL, func() {
		c.emit(Update{Kind: UpdateToasts})
	})
	return c
}

// Updates delivers change notifications. Updates are dropped when the
// buffer is full; the Channel's accessors always return current state.
func (c *Channel) Updates() <-chan Update {
	return c.updates
}

// State returns the connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recipient returns the recipient of the current or last connection.
func (c *Channel) Recipient() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recipient
}

// History returns a snapshot of the history, newest first.
func (c *Channel) History() []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Notification(nil), c.history...)
}

// UnreadCount returns the number of unread notifications in the history.
func (c *Channel) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return countUnread(c.history)
}

// Toasts returns the visible toasts.
func (c *Channel) Toasts() []Toast {
	return c.toasts.Toasts()
}

// DismissToast hides a toast before it expires.
func (c *Channel) DismissToast(id string) {
	if c.toasts.Dismiss(id) {
		c.emit(Update{Kind: UpdateToasts})
	}
}

// Connect loads the history and subscribes to live notifications. It is a
// no-op while connecting or connected.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}

	recipient, err := c.recipients.RecipientID()
	if err != nil || recipient == "" {
		c.mu.Unlock()
		log.Error("cannot connect: missing recipient", zap.Error(err))
		if err == nil {
			return ErrNoRecipient
		}
		return fmt.Errorf("%w: %w", ErrNoRecipient, err)
	}

	c.epoch++
	epoch := c.epoch
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.recipient = recipient
	c.state = Connecting
	c.wg.Add(1)
	c.mu.Unlock()

	log.Info("connecting", zap.String("recipient", recipient))
	c.emit(Update{Kind: UpdateState, State: Connecting})

	c.seedFromCache(ctx, epoch, recipient)

	go func() {
		defer c.wg.Done()
		c.fetchHistory(runCtx, epoch, recipient)
	}()

	// The dial honours both the caller and Disconnect.
	dialCtx, stopDial := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(runCtx, stopDial)
	src, sub, err := c.open(dialCtx, recipient)
	stopAfter()
	stopDial()

	c.mu.Lock()
	if c.epoch != epoch {
		// Disconnected while dialing.
		c.mu.Unlock()
		closeTransport(src, sub)
		return nil
	}
	if err != nil {
		c.state = Disconnected
		cancel()
		c.cancel = nil
		c.mu.Unlock()
		c.wg.Wait()

		log.Error("connect failed", zap.String("recipient", recipient), zap.Error(err))
		c.emit(Update{Kind: UpdateState, State: Disconnected})
		return &ConnectError{Recipient: recipient, Err: err}
	}
	c.source, c.sub = src, sub
	c.state = Connected
	c.wg.Add(1)
	c.mu.Unlock()

	log.Info("connected", zap.String("recipient", recipient))
	c.emit(Update{Kind: UpdateState, State: Connected})

	go func() {
		defer c.wg.Done()
		c.readLoop(runCtx, epoch, sub)
	}()
	return nil
}

// Disconnect closes the subscription and stops reconnecting. Results of
// requests started before the call are discarded. It is idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.state == Disconnected && c.cancel == nil {
		c.mu.Unlock()
		return
	}
	c.epoch++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	src, sub := c.source, c.sub
	c.source, c.sub = nil, nil
	c.state = Disconnected
	c.mu.Unlock()

	closeTransport(src, sub)
	c.wg.Wait()

	log.Info("disconnected")
	c.emit(Update{Kind: UpdateState, State: Disconnected})
}

// Reset disconnects and forgets the history, the toasts and the cache.
func (c *Channel) Reset() {
	c.Disconnect()

	c.mu.Lock()
	c.history = nil
	c.recipient = ""
	c.toasts.Clear()
	c.mu.Unlock()

	if c.cache != nil {
		c.persistMu.Lock()
		if err := c.cache.ClearNotifications(context.Background()); err != nil {
			log.Warn("failed to clear notification cache", zap.Error(err))
		}
		c.persistMu.Unlock()
	}

	c.emit(Update{Kind: UpdateHistory})
	c.emit(Update{Kind: UpdateToasts})
}

// Refresh refetches the history and merges it.
func (c *Channel) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	epoch, recipient := c.epoch, c.recipient
	c.mu.Unlock()

	return c.fetchHistory(ctx, epoch, recipient)
}

// MarkAsRead flags id as read on the server, then locally. Notifications
// with a locally assigned id are only flagged locally. Marking a read
// notification again is a no-op.
func (c *Channel) MarkAsRead(ctx context.Context, id model.NotificationID) error {
	c.mu.Lock()
	i := indexOf(c.history, id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownNotification, id)
	}
	if c.history[i].Read {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !isLocalID(id) {
		if err := c.backend.MarkRead(ctx, id); err != nil {
			log.Warn("mark as read failed", zap.String("id", string(id)), zap.Error(err))
			return err
		}
	}

	c.mu.Lock()
	if i := indexOf(c.history, id); i >= 0 {
		c.history[i].Read = true
	}
	c.mu.Unlock()

	c.persist()
	c.emit(Update{Kind: UpdateHistory})
	return nil
}

// MarkAllAsRead marks every unread notification read. A failure does not
// stop the others; the failures are returned joined.
func (c *Channel) MarkAllAsRead(ctx context.Context) error {
	var errs []error
	for _, n := range c.History() {
		if n.Read {
			continue
		}
		if err := c.MarkAsRead(ctx, n.ID); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isLocalID(id model.NotificationID) bool {
	return strings.HasPrefix(string(id), localIDPrefix)
}

func (c *Channel) open(ctx context.Context, recipient string) (EventSource, Subscription, error) {
	var token string
	if c.tokens != nil {
		token = c.tokens.Token()
	}

	src, err := c.dialer.Dial(ctx, token)
	if err != nil {
		return nil, nil, fmt.Errorf("dialing: %w", err)
	}

	sub, err := src.Subscribe(c.topicPrefix + recipient)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("subscribing: %w", err)
	}
	return src, sub, nil
}

func (c *Channel) readLoop(ctx context.Context, epoch uint64, sub Subscription) {
	msgs := sub.C()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.transportFailed(ctx, epoch, errors.New("subscription closed"))
				return
			}
			if msg.Err != nil {
				c.transportFailed(ctx, epoch, msg.Err)
				return
			}
			c.receive(epoch, msg.Body)
		}
	}
}

// receive adds a pushed notification. Ids already in the history are
// ignored so the existing entry and its read flag are kept.
func (c *Channel) receive(epoch uint64, body []byte) {
	var n model.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Warn("dropping malformed notification", zap.ByteString("body", body), zap.Error(err))
		c.emit(Update{Kind: UpdateError, Err: &ParseError{Body: body, Err: err}})
		return
	}
	if n.ID == "" {
		n.ID = model.NotificationID(localIDPrefix + uuid.NewString())
	}
	n.ReceivedAt = time.Now()

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	if indexOf(c.history, n.ID) >= 0 {
		c.mu.Unlock()
		log.Debug("ignoring known notification", zap.String("id", string(n.ID)))
		return
	}
	if n.RecipientID == "" {
		n.RecipientID = c.recipient
	}
	c.history = append([]model.Notification{n}, c.history...)
	// Added under mu so Reset never leaves a toast without its entry.
	c.toasts.Add(n)
	c.mu.Unlock()

	c.persist()
	c.emit(Update{Kind: UpdateNotification, Notification: &n})
}

func (c *Channel) transportFailed(ctx context.Context, epoch uint64, err error) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != Connected {
		c.mu.Unlock()
		return
	}
	src, sub := c.source, c.sub
	c.source, c.sub = nil, nil
	c.state = Connecting
	c.epoch++
	recipient := c.recipient
	c.wg.Add(1)
	c.mu.Unlock()

	log.Warn("transport error, reconnecting", zap.Error(err))
	closeTransport(src, sub)
	c.emit(Update{Kind: UpdateError, Err: err})
	c.emit(Update{Kind: UpdateState, State: Connecting})

	go func() {
		defer c.wg.Done()
		c.reconnect(ctx, recipient)
	}()
}

// reconnect redials with exponential backoff until it succeeds or ctx is
// cancelled by Disconnect.
func (c *Channel) reconnect(ctx context.Context, recipient string) {
	delay := c.reconnectMin
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		src, sub, err := c.open(ctx, recipient)
		if err != nil {
			log.Warn("reconnect failed",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			c.emit(Update{Kind: UpdateError, Err: &ConnectError{Recipient: recipient, Err: err}})

			delay *= 2
			if delay > c.reconnectMax {
				delay = c.reconnectMax
			}
			continue
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			closeTransport(src, sub)
			return
		}
		c.epoch++
		epoch := c.epoch
		c.source, c.sub = src, sub
		c.state = Connected
		c.mu.Unlock()

		log.Info("reconnected", zap.Int("attempt", attempt))
		c.emit(Update{Kind: UpdateState, State: Connected})

		_ = c.fetchHistory(ctx, epoch, recipient)
		c.readLoop(ctx, epoch, sub)
		return
	}
}

func (c *Channel) fetchHistory(ctx context.Context, epoch uint64, recipient string) error {
	fetched, err := c.backend.FetchHistory(ctx, recipient)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("failed to fetch history", zap.Error(err))
			c.emit(Update{Kind: UpdateError, Err: err})
		}
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return nil
	}
	c.history = mergeHistory(c.history, fetched)
	c.mu.Unlock()

	c.persist()
	c.emit(Update{Kind: UpdateHistory})
	return nil
}

func (c *Channel) seedFromCache(ctx context.Context, epoch uint64, recipient string) {
	if c.cache == nil {
		return
	}

	cached, err := c.cache.GetNotifications(ctx, recipient)
	if err != nil {
		log.Warn("failed to read notification cache", zap.Error(err))
		return
	}
	if len(cached) == 0 {
		return
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.history = mergeHistory(c.history, cached)
	}
	c.mu.Unlock()
	c.emit(Update{Kind: UpdateHistory})
}

func (c *Channel) persist() {
	if c.cache == nil {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	recipient := c.recipient
	snapshot := append([]model.Notification(nil), c.history...)
	c.mu.Unlock()

	if recipient == "" {
		return
	}
	if err := c.cache.ReplaceNotifications(context.Background(), recipient, snapshot); err != nil {
		log.Warn("failed to cache notifications", zap.Error(err))
	}
}

func (c *Channel) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		// Drop if the channel is full; state stays readable.
	}
}

// closeTransport closes the connection before releasing the subscription,
// so no UNSUBSCRIBE receipt is awaited on a connection being torn down.
func closeTransport(src EventSource, sub Subscription) {
	if src != nil {
		if err := src.Close(); err != nil {
			log.Debug("close failed", zap.Error(err))
		}
	}
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug("unsubscribe failed", zap.Error(err))
		}
	}
}
