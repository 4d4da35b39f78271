package viewer

import (
	"errors"
	"sync"
	"time"

	"contract-lens/internal/domain"
)

// The session publishes state changes on a non-blocking fan-out bus instead
// of holding references to the components that react to them. Slow
// subscribers lose events rather than stalling the viewer: a dropped
// notification is recoverable from the next State call, a blocked render
// pipeline is not.

// EventType identifies what changed.
type EventType string

const (
	EventStateChanged EventType = "state_changed"
	EventPageVisible  EventType = "page_visible"
	EventPageRendered EventType = "page_rendered"
	EventPageFailed   EventType = "page_failed"
	EventJumpResolved EventType = "jump_resolved"
)

// Event is one viewer notification.
type Event struct {
	Type      EventType            `json:"type"`
	State     domain.ViewerState   `json:"state"`
	Page      int                  `json:"page,omitempty"`
	Target    *domain.ScrollTarget `json:"target,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

var (
	// ErrSubscriberExists is returned when Subscribe is called with a duplicate id.
	ErrSubscriberExists = errors.New("subscriber id already exists")

	// ErrSubscriberNotFound is returned when Unsubscribe is called with unknown id.
	ErrSubscriberNotFound = errors.New("subscriber id not found")

	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("event bus is closed")
)

// BusStats is a snapshot of delivery counters.
type BusStats struct {
	Published uint64
	Sent      uint64
	Dropped   uint64
}

// Bus fans events out to subscriber channels without blocking. If a
// subscriber's channel is full the event is dropped for that subscriber.
type Bus struct {
	mu     sync.Mutex
	subs   map[string]chan<- Event
	closed bool

	published uint64
	sent      uint64
	dropped   uint64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan<- Event)}
}

// Subscribe registers a channel to receive events.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if _, ok := b.subs[id]; ok {
		return ErrSubscriberExists
	}
	b.subs[id] = ch
	return nil
}

// Unsubscribe removes a subscriber by id.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if _, ok := b.subs[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(b.subs, id)
	return nil
}

// Publish delivers the event to every subscriber whose channel has room.
// Never blocks. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.published++
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			b.sent++
		default:
			b.dropped++
		}
	}
}

// Stats returns current delivery counters.
func (b *Bus) Stats() BusStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BusStats{Published: b.published, Sent: b.sent, Dropped: b.dropped}
}

// Close stops the bus. Subsequent Subscribe/Unsubscribe return ErrBusClosed
// and Publish becomes a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.closed = true
	b.subs = nil
	return nil
}
