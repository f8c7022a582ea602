// Package eventbus provides event-driven communication infrastructure for
// flow automation.
package eventbus

import (
	"context"

	"github.com/leadflow/leadflow/pkg/events"
)

// Event is anything the bus can carry; the type routes it to handlers.
type Event interface {
	GetType() events.EventType
}

// EventHandler processes one delivered event. Returning an error nacks the
// message; delivery is at-least-once, so handlers must tolerate redelivery.
type EventHandler func(ctx context.Context, event interface{}) error

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventBus is the full producer-and-consumer surface the binaries wire up.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
