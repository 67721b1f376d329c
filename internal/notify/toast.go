package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/socialterm/internal/model"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 5 * time.Second

// Toast is a transient banner for a freshly received notification.
type Toast struct {
	ID           string
	Notification model.Notification
	ExpiresAt    time.Time
}

// ToastQueue holds the visible toasts. Each toast is removed after the TTL
// or when dismissed, whichever comes first.
type ToastQueue struct {
	ttl      time.Duration
	onChange func()

	mu     sync.Mutex
	toasts []Toast
	timers map[string]*time.Timer
}

// NewToastQueue creates a queue. onChange, if non-nil, is called after a
// toast expires; it must not block.
func NewToastQueue(ttl time.Duration, onChange func()) *ToastQueue {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &ToastQueue{
		ttl:      ttl,
		onChange: onChange,
		timers:   make(map[string]*time.Timer),
	}
}

// Add shows a toast for n and schedules its removal.
func (q *ToastQueue) Add(n model.Notification) Toast {
	t := Toast{
		ID:           uuid.NewString(),
		Notification: n,
		ExpiresAt:    time.Now().Add(q.ttl),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append(q.toasts, t)
	q.timers[t.ID] = time.AfterFunc(q.ttl, func() {
		if q.remove(t.ID) && q.onChange != nil {
			q.onChange()
		}
	})
	return t
}

// Dismiss removes a toast before it expires. It reports whether the toast
// was still visible.
func (q *ToastQueue) Dismiss(id string) bool {
	return q.remove(id)
}

// Toasts returns the visible toasts, oldest first.
func (q *ToastQueue) Toasts() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Toast(nil), q.toasts...)
}

// Clear removes every toast and stops pending timers.
func (q *ToastQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, timer := range q.timers {
		timer.Stop()
	}
	q.toasts = nil
	q.timers = make(map[string]*time.Timer)
}

func (q *ToastQueue) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return true
		}
	}
	return false
}
