package events

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate. Every event carries a stable
// identifier so downstream consumers can deduplicate redelivery.
type DomainEvent interface {
	EventType() EventType
	EventID() uuid.UUID
	AggregateID() string
	OccurredAt() time.Time
}

// Base holds the identity fields shared by every domain event. Concrete events
// embed it and add their own payload fields.
type Base struct {
	id          uuid.UUID
	aggregateID string
	occurredAt  time.Time
}

// NewBase stamps a new event identity for the aggregate at the given instant.
func NewBase(aggregateID string, occurredAt time.Time) Base {
	return Base{id: uuid.New(), aggregateID: aggregateID, occurredAt: occurredAt}
}

// ReconstructBase rebuilds an event identity, e.g. when decoding a journal row.
func ReconstructBase(id uuid.UUID, aggregateID string, occurredAt time.Time) Base {
	return Base{id: id, aggregateID: aggregateID, occurredAt: occurredAt}
}

func (b Base) EventID() uuid.UUID    { return b.id }
func (b Base) AggregateID() string   { return b.aggregateID }
func (b Base) OccurredAt() time.Time { return b.occurredAt }

// EventEnvelope wraps a domain event with the routing and chain metadata the
// dispatcher needs to deliver it.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key groups related events, typically the aggregate id.
	Key string

	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string

	// Timestamp records when the event occurred.
	Timestamp time.Time

	// Payload is the concrete DomainEvent.
	Payload DomainEvent

	// Metadata describes where this event sits inside a choreography chain.
	Metadata ChainMetadata
}

// ChainMetadata locates an event inside the synchronous cascade started by a
// single command.
type ChainMetadata struct {
	// ChainID is shared by every event raised while handling one root publish.
	ChainID uuid.UUID
	// Depth is 0 for the root event and grows by one per nested publish.
	Depth int
	// CausationID is the id of the event whose handler raised this one.
	CausationID uuid.UUID
}

// NewEnvelope wraps a domain event, applying any publish options.
func NewEnvelope(evt DomainEvent, opts ...PublishOption) EventEnvelope {
	var params PublishParams
	for _, opt := range opts {
		opt(&params)
	}

	key := params.Key
	if key == "" {
		key = evt.AggregateID()
	}

	return EventEnvelope{
		Type:      evt.EventType(),
		Key:       key,
		Headers:   params.Headers,
		Timestamp: evt.OccurredAt(),
		Payload:   evt,
	}
}
