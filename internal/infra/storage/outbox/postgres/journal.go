// Package postgres persists the event journal in the outbox_events table.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/events"
	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/outbox"
	"github.com/ahrav/academy/internal/infra/storage"
)

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

var _ outbox.Store = (*journalStore)(nil)

type journalStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewJournalStore creates a new PostgreSQL-backed outbox store with tracing capabilities.
func NewJournalStore(pool *pgxpool.Pool, tracer trace.Tracer) *journalStore {
	return &journalStore{db: pool, tracer: tracer}
}

func (s *journalStore) Append(ctx context.Context, r outbox.Record) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("event_id", r.EventID.String()),
		attribute.String("event_type", string(r.EventType)),
		attribute.String("outcome", string(r.Outcome)),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.append_outbox_event", dbAttrs, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `
			INSERT INTO outbox_events (
				event_id, event_type, aggregate_id, chain_id, causation_id, depth, payload,
				outcome, failed_handler, error, status, occurred_at, recorded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (event_id) DO NOTHING`,
			r.EventID, string(r.EventType), r.AggregateID, r.ChainID, nullableUUID(r.CausationID), r.Depth,
			[]byte(r.Payload), string(r.Outcome), r.FailedHandler, r.Error, string(r.Status),
			r.OccurredAt, r.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
}

func (s *journalStore) UpdateOutcome(
	ctx context.Context,
	eventID uuid.UUID,
	outcome eventdispatcher.DeliveryOutcome,
	failedHandler, errText string,
) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("event_id", eventID.String()),
		attribute.String("outcome", string(outcome)),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_outbox_event_outcome", dbAttrs, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE outbox_events SET outcome = $2, failed_handler = $3, error = $4
			WHERE event_id = $1`,
			eventID, string(outcome), failedHandler, errText,
		)
		if err != nil {
			return fmt.Errorf("update outbox event outcome: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("outbox event %s not found", eventID)
		}
		return nil
	})
}

func (s *journalStore) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	dbAttrs := append(defaultDBAttributes, attribute.Int("limit", limit))

	var out []outbox.Record
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.fetch_pending_outbox_events", dbAttrs, func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, `
			SELECT seq, event_id, event_type, aggregate_id, chain_id, causation_id, depth, payload,
			       outcome, failed_handler, error, status, attempts, occurred_at, recorded_at, published_at
			FROM outbox_events
			WHERE status = $1
			ORDER BY seq
			LIMIT $2`,
			string(outbox.StatusPending), limit,
		)
		if err != nil {
			return fmt.Errorf("query pending outbox events: %w", err)
		}

		out, err = pgx.CollectRows(rows, scanRecord)
		if err != nil {
			return fmt.Errorf("scan outbox events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *journalStore) MarkPublished(ctx context.Context, seq int64, at time.Time) error {
	dbAttrs := append(defaultDBAttributes, attribute.Int64("seq", seq))

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.mark_outbox_event_published", dbAttrs, func(ctx context.Context) error {
		tag, err := s.db.Exec(ctx, `
			UPDATE outbox_events SET status = $2, published_at = $3, attempts = attempts + 1
			WHERE seq = $1`,
			seq, string(outbox.StatusPublished), at,
		)
		if err != nil {
			return fmt.Errorf("mark outbox event published: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("outbox event %d not found", seq)
		}
		return nil
	})
}

func (s *journalStore) MarkAttemptFailed(ctx context.Context, seq int64) error {
	dbAttrs := append(defaultDBAttributes, attribute.Int64("seq", seq))

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.mark_outbox_event_attempt", dbAttrs, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, `UPDATE outbox_events SET attempts = attempts + 1 WHERE seq = $1`, seq)
		if err != nil {
			return fmt.Errorf("mark outbox event attempt: %w", err)
		}
		return nil
	})
}

func scanRecord(row pgx.CollectableRow) (outbox.Record, error) {
	var (
		r                         outbox.Record
		eventType, outcome, state string
		causation                 uuid.NullUUID
		payload                   []byte
	)
	if err := row.Scan(
		&r.Seq, &r.EventID, &eventType, &r.AggregateID, &r.ChainID, &causation, &r.Depth, &payload,
		&outcome, &r.FailedHandler, &r.Error, &state, &r.Attempts, &r.OccurredAt, &r.RecordedAt, &r.PublishedAt,
	); err != nil {
		return outbox.Record{}, err
	}
	r.EventType = events.EventType(eventType)
	r.Outcome = eventdispatcher.DeliveryOutcome(outcome)
	r.Status = outbox.Status(state)
	r.Payload = payload
	if causation.Valid {
		r.CausationID = causation.UUID
	}
	return r, nil
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
