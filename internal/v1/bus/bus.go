// Package bus implements the per-room action fan-out.
//
// Events announce that room state changed; they never carry the state
// itself. Every subscriber re-reads the room under the registry lock
// before rendering, so a dropped event costs at most one intermediate
// view, never divergence from truth.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/impermachat/server/internal/v1/metrics"
)

// Action tags the kind of room mutation an event announces.
type Action string

const (
	ActionTyping       Action = "typing"
	ActionSend         Action = "send"
	ActionSetName      Action = "set_name"
	ActionShutdownRoom Action = "shutdown_room"
	ActionUpdateTime   Action = "update_time"
	ActionMajorError   Action = "major_error"
)

// SystemConnectionID marks events originated by the janitor rather than
// a participant.
const SystemConnectionID = "System"

// Event is the unit of fan-out: who caused the change, and what kind of
// change it was.
type Event struct {
	ConnectionID string
	Action       Action
}

// DefaultCapacity is the per-subscriber buffer size.
const DefaultCapacity = 100

// Broadcaster is a bounded, best-effort publish/subscribe channel for a
// single room. Publishing never blocks: a subscriber whose buffer is
// full loses the event and its drop counter advances.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	capacity    int
	closed      bool
}

// Subscriber is one receiver on a Broadcaster. It is owned by a single
// goroutine; Cancel detaches it and closes its channel.
type Subscriber struct {
	b       *Broadcaster
	ch      chan Event
	dropped atomic.Uint64
	once    sync.Once
}

// New creates a Broadcaster with the default per-subscriber capacity.
func New() *Broadcaster {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a Broadcaster whose subscribers buffer up to
// capacity events.
func NewWithCapacity(capacity int) *Broadcaster {
	if capacity < 1 {
		capacity = 1
	}
	return &Broadcaster{
		subscribers: make(map[*Subscriber]struct{}),
		capacity:    capacity,
	}
}

// Subscribe registers a new receiver. Subscribing to a closed
// Broadcaster returns a subscriber whose channel is already closed.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{b: b, ch: make(chan Event, b.capacity)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	b.subscribers[sub] = struct{}{}
	return sub
}

// Publish delivers ev to every live subscriber and reports how many
// received it. Zero receivers is legal; a full subscriber buffer drops
// the event for that subscriber only.
func (b *Broadcaster) Publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}

	metrics.BusEventsPublished.WithLabelValues(string(ev.Action)).Inc()

	delivered := 0
	for sub := range b.subscribers {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			sub.dropped.Add(1)
			metrics.BusEventsDropped.WithLabelValues(string(ev.Action)).Inc()
		}
	}
	return delivered
}

// Close terminates every subscriber. Pending buffered events are still
// readable; the channels then report closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subscribers, sub)
	}
}

// Len reports the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// C is the receive side of the subscription.
func (s *Subscriber) C() <-chan Event {
	return s.ch
}

// Dropped reports the cumulative number of events this subscriber lost
// to a full buffer.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Cancel detaches the subscriber and closes its channel. Safe to call
// more than once, and after the Broadcaster is closed.
func (s *Subscriber) Cancel() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	delete(s.b.subscribers, s)
	s.once.Do(func() { close(s.ch) })
}
