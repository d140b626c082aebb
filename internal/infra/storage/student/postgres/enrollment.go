package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/internal/infra/storage"
)

var _ student.EnrollmentRepository = (*enrollmentStore)(nil)

// enrollmentStore implements student.EnrollmentRepository. The partial unique
// index enrollments_open_pair_key re-validates open-enrollment uniqueness at
// commit time, closing the race between two concurrent enroll requests.
type enrollmentStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewEnrollmentStore creates a new PostgreSQL-backed enrollment repository with tracing capabilities.
func NewEnrollmentStore(pool *pgxpool.Pool, tracer trace.Tracer) *enrollmentStore {
	return &enrollmentStore{db: pool, tracer: tracer}
}

const openPairIndex = "enrollments_open_pair_key"

const selectEnrollment = `
	SELECT id, student_id, course_id, price, discount, final_price, status, enrollment_date,
	       completion_date, payment_id, transaction_id, score, refunded_amount, updated_at
	FROM enrollments`

func (r *enrollmentStore) GetByID(ctx context.Context, id uuid.UUID) (*student.Enrollment, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("enrollment_id", id.String()))

	var e *student.Enrollment
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_enrollment", dbAttrs, func(ctx context.Context) error {
		var err error
		e, err = scanEnrollment(r.db.QueryRow(ctx, selectEnrollment+` WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("enrollment", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *enrollmentStore) FindOpen(ctx context.Context, studentID, courseID uuid.UUID) (*student.Enrollment, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("student_id", studentID.String()),
		attribute.String("course_id", courseID.String()),
	)

	var e *student.Enrollment
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.find_open_enrollment", dbAttrs, func(ctx context.Context) error {
		var err error
		e, err = scanEnrollment(r.db.QueryRow(ctx, selectEnrollment+`
			WHERE student_id = $1 AND course_id = $2
			  AND status IN ('CREATED', 'PENDING_PAYMENT', 'ACTIVE')`, studentID, courseID))
		if errors.Is(err, pgx.ErrNoRows) {
			return &shared.NotFoundError{Kind: "open enrollment", ID: studentID.String() + "/" + courseID.String()}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *enrollmentStore) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*student.Enrollment, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("payment_id", paymentID.String()))

	var e *student.Enrollment
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_enrollment_by_payment", dbAttrs, func(ctx context.Context) error {
		var err error
		e, err = scanEnrollment(r.db.QueryRow(ctx, selectEnrollment+` WHERE payment_id = $1`, paymentID))
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("enrollment for payment", paymentID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *enrollmentStore) Add(ctx context.Context, e *student.Enrollment) error {
	s := e.Snapshot()
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("enrollment_id", s.ID.String()),
		attribute.String("student_id", s.StudentID.String()),
		attribute.String("course_id", s.CourseID.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.add_enrollment", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO enrollments (
				id, student_id, course_id, price, discount, final_price, status, enrollment_date,
				completion_date, payment_id, transaction_id, score, refunded_amount, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			s.ID, s.StudentID, s.CourseID, s.Price, s.Discount.Rate(), s.FinalPrice, string(s.Status),
			s.EnrollmentDate, s.CompletionDate, nullableUUID(s.PaymentID), s.TransactionID, s.Score,
			s.RefundedAmount, s.UpdatedAt,
		)
		if storage.IsUniqueViolation(err, openPairIndex) {
			return &student.DuplicateEnrollmentError{StudentID: s.StudentID, CourseID: s.CourseID}
		}
		if err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
		return nil
	})
}

func (r *enrollmentStore) Update(ctx context.Context, e *student.Enrollment) error {
	s := e.Snapshot()
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("enrollment_id", s.ID.String()),
		attribute.String("status", s.Status.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_enrollment", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE enrollments SET
				status = $2, completion_date = $3, payment_id = $4, transaction_id = $5,
				score = $6, refunded_amount = $7, updated_at = $8
			WHERE id = $1`,
			s.ID, string(s.Status), s.CompletionDate, nullableUUID(s.PaymentID), s.TransactionID,
			s.Score, s.RefundedAmount, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewNotFoundError("enrollment", s.ID)
		}
		return nil
	})
}

func scanEnrollment(row pgx.Row) (*student.Enrollment, error) {
	var (
		s         student.EnrollmentSnapshot
		rate      decimal.Decimal
		status    string
		paymentID uuid.NullUUID
		completed *time.Time
	)
	if err := row.Scan(
		&s.ID, &s.StudentID, &s.CourseID, &s.Price, &rate, &s.FinalPrice, &status, &s.EnrollmentDate,
		&completed, &paymentID, &s.TransactionID, &s.Score, &s.RefundedAmount, &s.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}

	discount, err := shared.NewDiscount(rate)
	if err != nil {
		return nil, fmt.Errorf("stored discount for enrollment %s: %w", s.ID, err)
	}
	s.Discount = discount
	s.Status = student.ParseEnrollmentStatus(status)
	s.CompletionDate = completed
	if paymentID.Valid {
		s.PaymentID = paymentID.UUID
	}
	return student.ReconstructEnrollment(s), nil
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
