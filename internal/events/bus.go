package events

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"spectral/internal/logging"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Bus fans events out to subscribers without ever blocking the publisher.
// A subscriber whose buffer is full loses the event; Stats reports drops.
type Bus struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	closed      bool
	buffer      int

	sequence atomic.Uint64
	dropped  atomic.Uint64
}

type subscriber struct {
	ch    chan Event
	types map[Type]bool
}

func (s *subscriber) wants(t Type) bool {
	return len(s.types) == 0 || s.types[t]
}

// NewBus creates a bus. buffer <= 0 uses DefaultBuffer.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{buffer: buffer}
}

// Subscribe returns a channel receiving events of the given types, or all
// events when none are given, and a function that unsubscribes and closes
// the channel. The function is safe to call more than once.
func (b *Bus) Subscribe(types ...Type) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, b.buffer)}
	if len(types) > 0 {
		sub.types = make(map[Type]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.Index(b.subscribers, sub)
	if i < 0 {
		return
	}
	b.subscribers = slices.Delete(b.subscribers, i, i+1)
	close(sub.ch)
}

// Publish delivers e to every interested subscriber. Safe on a nil bus.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	e.ID = b.sequence.Add(1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subscribers {
		if !sub.wants(e.Type) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
			logging.Get(logging.CategoryEvents).Debug("dropped %s event %d for slow subscriber", e.Type, e.ID)
		}
	}
}

// Emit is shorthand for publishing a step-scoped message.
func (b *Bus) Emit(t Type, step int, message string) {
	b.Publish(Event{Type: t, Step: step, Message: message})
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}

// Stats holds bus counters.
type Stats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Subscribers: len(b.subscribers),
		Published:   b.sequence.Load(),
		Dropped:     b.dropped.Load(),
	}
}
