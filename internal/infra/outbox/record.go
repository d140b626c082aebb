// Package outbox journals every dispatched domain event and relays the journal
// to Kafka for consumers outside the process.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/events"
	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
)

// Status tracks a journal row through the relay.
type Status string

const (
	// StatusPending rows have not reached the broker yet.
	StatusPending Status = "PENDING"
	// StatusPublished rows were acknowledged by the broker.
	StatusPublished Status = "PUBLISHED"
)

// Record is one journaled event. Rows are appended when dispatch starts, so
// Seq orders every cause ahead of its effects. Outcome is the in-process
// delivery result and stays IN_FLIGHT until the handlers return; the relay
// does not wait for it. Status belongs to the relay.
type Record struct {
	Seq           int64
	EventID       uuid.UUID
	EventType     events.EventType
	AggregateID   string
	ChainID       uuid.UUID
	CausationID   uuid.UUID
	Depth         int
	Payload       json.RawMessage
	Outcome       eventdispatcher.DeliveryOutcome
	FailedHandler string
	Error         string
	Status        Status
	Attempts      int
	OccurredAt    time.Time
	RecordedAt    time.Time
	PublishedAt   *time.Time
}

// NewRecord converts a dispatch into a PENDING journal row.
func NewRecord(d eventdispatcher.Delivery, recordedAt time.Time) (Record, error) {
	env := d.Envelope
	if env.Payload == nil {
		return Record{}, fmt.Errorf("journal %s: envelope has no payload", env.Type)
	}

	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode %s payload: %w", env.Type, err)
	}

	r := Record{
		EventID:       env.Payload.EventID(),
		EventType:     env.Type,
		AggregateID:   env.Payload.AggregateID(),
		ChainID:       env.Metadata.ChainID,
		CausationID:   env.Metadata.CausationID,
		Depth:         env.Metadata.Depth,
		Payload:       payload,
		Outcome:       d.Outcome,
		FailedHandler: d.FailedHandler,
		Status:        StatusPending,
		OccurredAt:    env.Timestamp,
		RecordedAt:    recordedAt,
	}
	if d.Err != nil {
		r.Error = d.Err.Error()
	}
	return r, nil
}

// Store persists journal rows and the relay's progress over them.
type Store interface {
	// Append inserts a row. Appending an event id twice keeps the first row.
	Append(ctx context.Context, r Record) error
	// UpdateOutcome stores the delivery result for the row holding eventID.
	UpdateOutcome(ctx context.Context, eventID uuid.UUID, outcome eventdispatcher.DeliveryOutcome, failedHandler, errText string) error
	// FetchPending returns up to limit PENDING rows in journal order.
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	// MarkPublished moves a row to PUBLISHED.
	MarkPublished(ctx context.Context, seq int64, at time.Time) error
	// MarkAttemptFailed counts a failed publish; the row stays PENDING.
	MarkAttemptFailed(ctx context.Context, seq int64) error
}
