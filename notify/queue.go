package notify

import (
	"sync"
	"time"

	"github.com/MrEthical07/authsync/clock"
	"github.com/google/uuid"
)

// Type is a presentation hint. It has no behavioral effect on the queue.
type Type uint8

const (
	// TypeSuccess is an exported notification kind.
	TypeSuccess Type = iota
	// TypeError is an exported notification kind.
	TypeError
	// TypeInfo is an exported notification kind.
	TypeInfo
	// TypeWarning is an exported notification kind.
	TypeWarning
)

// String returns the lowercase kind name.
func (t Type) String() string {
	switch t {
	case TypeSuccess:
		return "success"
	case TypeError:
		return "error"
	case TypeInfo:
		return "info"
	case TypeWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Sticky is the duration sentinel that disables auto-removal: the entry
// stays until Remove, Clear, or Close.
const Sticky time.Duration = 0

// DefaultDuration is the auto-removal delay applied when Add is called
// without a WithDuration option and the queue was not configured otherwise.
const DefaultDuration = 5 * time.Second

// Notification is one queue entry. ID is unique for the process lifetime.
type Notification struct {
	ID        string
	Type      Type
	Title     string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Queue is an insertion-ordered collection of self-expiring notifications.
// All methods are safe for concurrent use.
type Queue struct {
	clk             clock.Clock
	defaultDuration time.Duration
	onExpire        func(Notification)

	mu      sync.Mutex
	entries []Notification
	timers  map[string]clock.Timer
	closed  bool
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithDefaultDuration overrides [DefaultDuration] for entries added without
// an explicit duration. Sticky is not a valid default.
func WithDefaultDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.defaultDuration = d
		}
	}
}

// WithOnExpire registers a callback invoked (outside the queue lock) for
// every timer-driven eviction. Manual Remove and Clear do not trigger it.
func WithOnExpire(fn func(Notification)) Option {
	return func(q *Queue) { q.onExpire = fn }
}

// AddOption configures a single Add call.
type AddOption func(*addOptions)

type addOptions struct {
	message     string
	duration    time.Duration
	durationSet bool
}

// WithMessage attaches body text below the title.
func WithMessage(message string) AddOption {
	return func(o *addOptions) { o.message = message }
}

// WithDuration sets the auto-removal delay. [Sticky] (zero) disables
// auto-removal entirely; a negative duration reads as Sticky too.
func WithDuration(d time.Duration) AddOption {
	return func(o *addOptions) {
		o.duration = d
		o.durationSet = true
	}
}

// New returns an empty queue driven by clk. A nil clk falls back to the
// real clock.
func New(clk clock.Clock, opts ...Option) *Queue {
	if clk == nil {
		clk = clock.Real()
	}
	q := &Queue{
		clk:             clk,
		defaultDuration: DefaultDuration,
		timers:          make(map[string]clock.Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Add appends a notification and returns its assigned id. Unless the entry
// is sticky, a one-shot timer removes it after its duration. Add on a
// closed queue returns the empty id and stores nothing.
func (q *Queue) Add(typ Type, title string, opts ...AddOption) string {
	o := addOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	duration := q.defaultDuration
	if o.durationSet {
		duration = o.duration
		if duration < 0 {
			duration = Sticky
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ""
	}

	n := Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   o.message,
		Duration:  duration,
		CreatedAt: q.clk.Now(),
	}
	q.entries = append(q.entries, n)

	if duration != Sticky {
		id := n.ID
		q.timers[id] = q.clk.AfterFunc(duration, func() { q.expire(id) })
	}

	return n.ID
}

// Remove deletes the entry with the given id and cancels its pending timer.
// An unknown id is a silent no-op.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	q.removeLocked(id)
	q.mu.Unlock()
}

// Clear atomically removes every entry and cancels every pending timer.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearLocked()
}

// Close clears the queue and rejects further Adds. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearLocked()
	q.closed = true
}

// Items returns the current entries in insertion order, oldest first. The
// slice is a copy; mutating it does not affect the queue.
func (q *Queue) Items() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Notification, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len reports the number of live entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// expire is the timer path. The entry may already be gone when the timer
// races a manual Remove; that is a no-op, never a double removal.
func (q *Queue) expire(id string) {
	q.mu.Lock()
	delete(q.timers, id)
	n, removed := q.dropEntryLocked(id)
	onExpire := q.onExpire
	q.mu.Unlock()

	if removed && onExpire != nil {
		onExpire(n)
	}
}

func (q *Queue) removeLocked(id string) {
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	q.dropEntryLocked(id)
}

func (q *Queue) clearLocked() {
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
	q.entries = nil
}

func (q *Queue) dropEntryLocked(id string) (Notification, bool) {
	for i, n := range q.entries {
		if n.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return n, true
		}
	}
	return Notification{}, false
}
