// Package events defines the in-process event bus contract that
// connects campaign progress to its listeners, such as the SSE feed
// and the notification mailer. Carriers of business meaning live in
// internal/events; this package only holds the wiring.
package events

import (
	"context"
	"time"
)

// Event is implemented by every value published on the bus.
type Event interface {
	// EventName keys handler subscriptions, one name per event type.
	EventName() string
	// OccurredAt reports when the event happened.
	OccurredAt() time.Time
}

// BaseEvent supplies the timestamp; embed it in concrete events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt reports when the event happened.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a base event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one subscribed type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans events out to subscribed handlers.
type Bus interface {
	// Publish delivers the event to every handler subscribed to its
	// name without waiting for them to finish.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and blocks until every handler
	// returns, joining their errors.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler under the name the event reports
	// from EventName.
	Subscribe(eventName string, handler Handler)
}
