package bus

import (
	"log/slog"
	"sync"
)

// Bus is the contract between tool-providing servers and the session driver.
// Implementations may use buffered channels, pub/sub systems, or any other transport.
type Bus interface {
	// Publish delivers an event without blocking the publisher.
	Publish(ev Event)
	// Events returns a receive-only channel for the session driver to consume.
	Events() <-chan Event
	// Close stops delivery; later publishes are dropped.
	Close()
}

// EventBus is the default in-process Bus implementation backed by a buffered
// Go channel. Publishers never block: when the buffer is full the event is
// dropped and logged.
type EventBus struct {
	mu     sync.RWMutex
	events chan Event
	closed bool
}

func NewEventBus(bufSize int) *EventBus {
	return &EventBus{events: make(chan Event, bufSize)}
}

// Publish enqueues ev, dropping it when the buffer is full or the bus is closed.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	default:
		slog.Warn("Event bus full, dropping event", "kind", ev.Kind, "server", ev.Server)
	}
}

// Events returns a receive-only view of the event channel.
func (b *EventBus) Events() <-chan Event {
	return b.events
}

// Drain returns every event currently buffered without waiting for more.
func (b *EventBus) Drain() []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-b.events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Size returns the number of buffered events.
func (b *EventBus) Size() int { return len(b.events) }

// Close closes the event channel. It is safe to call more than once.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.events)
}
