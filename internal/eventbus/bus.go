package eventbus

import (
	"sync"
	"time"
)

// Bus is a simple in-process pub/sub event bus.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Topic][]subscription
}

type subscription struct {
	id      int
	handler Handler
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]subscription),
	}
}

// Subscribe registers a handler for the given topics and returns a function
// that removes it again.
func (b *Bus) Subscribe(handler Handler, topics ...Topic) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	for _, t := range topics {
		b.handlers[t] = append(b.handlers[t], subscription{id: id, handler: handler})
	}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range topics {
			subs := b.handlers[t]
			kept := subs[:0:0]
			for _, s := range subs {
				if s.id != id {
					kept = append(kept, s)
				}
			}
			b.handlers[t] = kept
		}
	}
}

// Publish sends an event to all subscribers of the topic.
// Handlers are called synchronously in the order they were registered.
// A nil Bus drops events.
func (b *Bus) Publish(topic Topic, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[topic]))
	copy(subs, b.handlers[topic])
	b.mu.RUnlock()

	event := Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, s := range subs {
		s.handler(event)
	}
}
