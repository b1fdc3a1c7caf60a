package testutil

import (
	"context"
	"sync"
)

// PublishedEvent is one event captured by the in-memory publisher
type PublishedEvent struct {
	Topic   string
	Payload interface{}
}

// InMemoryEventPublisher implements publisher.EventPublisher and records
// everything published for assertions
type InMemoryEventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// NewInMemoryEventPublisher creates a new recording publisher
func NewInMemoryEventPublisher() *InMemoryEventPublisher {
	return &InMemoryEventPublisher{}
}

func (p *InMemoryEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Topic: topic, Payload: payload})
	return nil
}

// Events returns the captured events in publish order
func (p *InMemoryEventPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedEvent(nil), p.events...)
}

// EventsForTopic returns the captured events published to a topic
func (p *InMemoryEventPublisher) EventsForTopic(topic string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []PublishedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			matched = append(matched, e)
		}
	}
	return matched
}

// Clear drops the captured events
func (p *InMemoryEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
