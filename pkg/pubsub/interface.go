package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event represents a message published to the relay bus.
type Event struct {
	Type      string          `json:"type"`
	Board     string          `json:"board"`
	Origin    string          `json:"origin"` // publishing relay instance id
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with the current timestamp. payload is an
// already encoded frame and is carried as-is.
func NewEvent(eventType, board, origin string, payload []byte) *Event {
	return &Event{
		Type:      eventType,
		Board:     board,
		Origin:    origin,
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now(),
	}
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to events from the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
