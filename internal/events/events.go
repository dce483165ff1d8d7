// Package events publishes domain events to the message bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the back office.
const (
	TypePOMerged        = "po.merged"
	TypePOCancelled     = "po.cancelled"
	TypeOrderDispatched = "order.dispatched"
)

// Envelope wraps every published event. Payload is event-specific JSON.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

// Event is the unit handed to a Publisher. Key selects the partition so all
// events for one aggregate keep their order.
type Event struct {
	Type    string
	Key     string
	Payload any
}

// Publisher delivers events to the bus. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NewEnvelope seals a payload into a versioned envelope.
func NewEnvelope(producer string, evt Event) (Envelope, error) {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    evt.Type,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producer,
		Payload:      payload,
	}, nil
}

// NoopPublisher drops events, used in tests and when the bus is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
