// Package events provides the in-process event bus used to report purchase
// and payment outcomes without coupling producers to their consumers.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by every published event.
type Event interface {
	// EventName is the subscription key, e.g. "purchases.data.dispensed".
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

// Handler processes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribers.
type Bus interface {
	// Publish delivers event to its subscribers without waiting for them.
	Publish(ctx context.Context, event Event)
	// PublishSync delivers event and returns the first handler error.
	PublishSync(ctx context.Context, event Event) error
	// Subscribe registers handler for events whose EventName equals eventName.
	Subscribe(eventName string, handler Handler)
}
