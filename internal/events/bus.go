package events

import (
	"log/slog"
	"sync"
	"time"
)

// EventType identifies a class of domain event.
type EventType string

const (
	EventEntityUpdated EventType = "entity.updated"
	EventEntityDeleted EventType = "entity.deleted"
	EventUserLoggedOut EventType = "user.logged_out"
)

// Event is a domain-level notification that cache adapters react to. Entity
// is the domain noun (user, team, task, message, dashboard) and Payload
// carries identifiers such as the entity id or team id.
type Event struct {
	Type      EventType
	Entity    string
	Payload   map[string]string
	Timestamp time.Time
}

// NewEvent constructs a stamped event.
func NewEvent(eventType EventType, entity string, payload map[string]string) Event {
	return Event{
		Type:      eventType,
		Entity:    entity,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

const subscriberBuffer = 16

// Bus is an in-process publish/subscribe channel for domain events. Update
// call sites publish directly instead of dispatching through any UI event
// mechanism; slow subscribers drop events rather than block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	closed      bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
	}
}

// Subscribe returns a channel receiving every future event of the given type.
// Subscribing to a closed bus yields an already-closed channel so range loops
// terminate immediately.
func (b *Bus) Subscribe(eventType EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// Publish delivers the event to every subscriber of its type. Delivery is
// non-blocking: a subscriber with a full buffer misses the event.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
			slog.Warn("Dropping event for slow subscriber", "type", event.Type, "entity", event.Entity)
		}
	}
}

// Close tears down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, chans := range b.subscribers {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.subscribers = make(map[EventType][]chan Event)
}
