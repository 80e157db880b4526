// Package notify delivers user-visible success and failure messages.
// Delivery is fire-and-forget: nothing waits on a notifier.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Notifier receives the outcome of user-initiated operations
type Notifier interface {
	Succeeded(message string)
	Failed(message string)
}

const (
	SuccessTimeout = 5 * time.Second
	ErrorTimeout   = 7 * time.Second
)

// Discard drops every message
var Discard Notifier = discard{}

type discard struct{}

func (discard) Succeeded(string) {}
func (discard) Failed(string)    {}

// Log writes notifications to a structured logger
type Log struct {
	Logger *slog.Logger
}

func (l Log) Succeeded(message string) {
	l.Logger.Info(message, "notification", "success")
}

func (l Log) Failed(message string) {
	l.Logger.Error(message, "notification", "error")
}

// Multi fans every notification out to several notifiers
type Multi []Notifier

func (m Multi) Succeeded(message string) {
	for _, n := range m {
		n.Succeeded(message)
	}
}

func (m Multi) Failed(message string) {
	for _, n := range m {
		n.Failed(message)
	}
}

// Level distinguishes success toasts from error toasts
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast is one queued notification
type Toast struct {
	ID      int
	Level   Level
	Message string
	Expires time.Time
}

// Queue keeps recent notifications around until they time out, for display
// in a status bar
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
	nextID int
	now    func() time.Time

	// OnChange, when set, is called after a toast is added
	OnChange func()
}

// NewQueue creates an empty toast queue
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

func (q *Queue) Succeeded(message string) {
	q.push(LevelSuccess, message, SuccessTimeout)
}

func (q *Queue) Failed(message string) {
	q.push(LevelError, message, ErrorTimeout)
}

func (q *Queue) push(level Level, message string, ttl time.Duration) {
	q.mu.Lock()
	q.nextID++
	q.toasts = append(q.toasts, Toast{
		ID:      q.nextID,
		Level:   level,
		Message: message,
		Expires: q.now().Add(ttl),
	})
	onChange := q.OnChange
	q.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

// Active returns the toasts that have not expired at now, oldest first, and
// forgets the expired ones
func (q *Queue) Active(now time.Time) []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	live := q.toasts[:0]
	for _, t := range q.toasts {
		if now.Before(t.Expires) {
			live = append(live, t)
		}
	}
	q.toasts = live

	out := make([]Toast, len(live))
	copy(out, live)
	return out
}

// Dismiss removes a toast before it expires
func (q *Queue) Dismiss(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return
		}
	}
}
