package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	// Handle processes a domain event
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes returns the event types this handler is interested in
	// An empty slice means the handler receives all events
	EventTypes() []string
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish publishes one or more domain events
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber subscribes to domain events
type EventSubscriber interface {
	// Subscribe registers a handler for specific event types
	// If no event types are provided, the handler receives all events
	Subscribe(handler EventHandler, eventTypes ...string)
	// Unsubscribe removes a handler from the subscription list
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber capabilities
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EventCollector buffers events raised inside a unit of work. Collected
// events are published only after the surrounding transaction commits.
type EventCollector interface {
	Collect(events ...DomainEvent)
}

// EventBuffer is a simple in-memory EventCollector
type EventBuffer struct {
	events []DomainEvent
}

// Collect appends events to the buffer
func (b *EventBuffer) Collect(events ...DomainEvent) {
	b.events = append(b.events, events...)
}

// Events returns the buffered events in collection order
func (b *EventBuffer) Events() []DomainEvent {
	return b.events
}

// Len returns the number of buffered events
func (b *EventBuffer) Len() int {
	return len(b.events)
}
