// Package events is the in-process event bus modules use to react to each
// other's state changes without importing one another.
package events

import (
	"context"
	"time"
)

// Event is anything published on the bus. EventName doubles as the
// subscription key.
type Event interface {
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the publish timestamp. Embed it in concrete events.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc lets a plain function subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to the handlers subscribed to their name.
type Bus interface {
	// Publish fans out without waiting; handler errors are logged by the bus.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers inline and returns their joined errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}

// SubscribeAll registers one handler for every listed event. A module that
// switches on the event type in Handle subscribes this way.
func SubscribeAll(bus Bus, handler Handler, prototypes ...Event) {
	for _, ev := range prototypes {
		bus.Subscribe(ev.EventName(), handler)
	}
}
