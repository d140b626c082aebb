package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/infra/storage"
)

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

var _ payment.Repository = (*paymentStore)(nil)

type paymentStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewPaymentStore creates a new PostgreSQL-backed payment repository with tracing capabilities.
func NewPaymentStore(pool *pgxpool.Pool, tracer trace.Tracer) *paymentStore {
	return &paymentStore{db: pool, tracer: tracer}
}

const selectPayment = `
	SELECT id, enrollment_id, student_id, amount, status, transaction_id, failure_reason,
	       refunded_amount, created_at, updated_at
	FROM payments`

func (r *paymentStore) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("payment_id", id.String()))

	var p *payment.Payment
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_payment", dbAttrs, func(ctx context.Context) error {
		var err error
		p, err = scanPayment(r.db.QueryRow(ctx, selectPayment+` WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("payment", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentStore) FindByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*payment.Payment, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("enrollment_id", enrollmentID.String()))

	var p *payment.Payment
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.find_payment_by_enrollment", dbAttrs, func(ctx context.Context) error {
		var err error
		p, err = scanPayment(r.db.QueryRow(ctx,
			selectPayment+` WHERE enrollment_id = $1 ORDER BY created_at DESC LIMIT 1`, enrollmentID))
		if errors.Is(err, pgx.ErrNoRows) {
			return &shared.NotFoundError{Kind: "payment for enrollment", ID: enrollmentID.String()}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentStore) Add(ctx context.Context, p *payment.Payment) error {
	s := p.Snapshot()
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("payment_id", s.ID.String()),
		attribute.String("enrollment_id", s.EnrollmentID.String()),
		attribute.String("amount", s.Amount.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.add_payment", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO payments (
				id, enrollment_id, student_id, amount, status, transaction_id, failure_reason,
				refunded_amount, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			s.ID, s.EnrollmentID, s.StudentID, s.Amount, string(s.Status), s.TransactionID, s.FailureReason,
			s.RefundedAmount, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		return nil
	})
}

func (r *paymentStore) Update(ctx context.Context, p *payment.Payment) error {
	s := p.Snapshot()
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("payment_id", s.ID.String()),
		attribute.String("status", s.Status.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_payment", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE payments SET
				status = $2, transaction_id = $3, failure_reason = $4, refunded_amount = $5, updated_at = $6
			WHERE id = $1`,
			s.ID, string(s.Status), s.TransactionID, s.FailureReason, s.RefundedAmount, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewNotFoundError("payment", s.ID)
		}
		return nil
	})
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		s      payment.Snapshot
		status string
	)
	if err := row.Scan(
		&s.ID, &s.EnrollmentID, &s.StudentID, &s.Amount, &status, &s.TransactionID, &s.FailureReason,
		&s.RefundedAmount, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	s.Status = payment.ParseStatus(status)
	return payment.ReconstructPayment(s), nil
}
