package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/internal/infra/storage"
)

var _ student.CertificateRepository = (*certificateStore)(nil)

type certificateStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewCertificateStore creates a new PostgreSQL-backed certificate repository with tracing capabilities.
func NewCertificateStore(pool *pgxpool.Pool, tracer trace.Tracer) *certificateStore {
	return &certificateStore{db: pool, tracer: tracer}
}

const studentCourseConstraint = "certificates_student_course_key"

const selectCertificate = `
	SELECT id, student_id, course_id, enrollment_id, number, issue_date, score FROM certificates`

func (r *certificateStore) GetByID(ctx context.Context, id uuid.UUID) (*student.Certificate, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("certificate_id", id.String()))

	var c *student.Certificate
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_certificate", dbAttrs, func(ctx context.Context) error {
		var err error
		c, err = scanCertificate(r.db.QueryRow(ctx, selectCertificate+` WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("certificate", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *certificateStore) FindByStudentCourse(ctx context.Context, studentID, courseID uuid.UUID) (*student.Certificate, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("student_id", studentID.String()),
		attribute.String("course_id", courseID.String()),
	)

	var c *student.Certificate
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.find_certificate", dbAttrs, func(ctx context.Context) error {
		var err error
		c, err = scanCertificate(r.db.QueryRow(ctx,
			selectCertificate+` WHERE student_id = $1 AND course_id = $2`, studentID, courseID))
		if errors.Is(err, pgx.ErrNoRows) {
			return &shared.NotFoundError{Kind: "certificate", ID: studentID.String() + "/" + courseID.String()}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *certificateStore) Add(ctx context.Context, c *student.Certificate) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("certificate_id", c.ID().String()),
		attribute.String("number", c.Number()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.add_certificate", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO certificates (id, student_id, course_id, enrollment_id, number, issue_date, score)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID(), c.StudentID(), c.CourseID(), c.EnrollmentID(), c.Number(), c.IssueDate(), c.Score(),
		)
		if storage.IsUniqueViolation(err, studentCourseConstraint) {
			return &student.DuplicateCertificateError{StudentID: c.StudentID(), CourseID: c.CourseID()}
		}
		if err != nil {
			return fmt.Errorf("insert certificate: %w", err)
		}
		return nil
	})
}

func scanCertificate(row pgx.Row) (*student.Certificate, error) {
	var (
		id, studentID, courseID, enrollmentID uuid.UUID
		number                                string
		issued                                time.Time
		score                                 *float64
	)
	if err := row.Scan(&id, &studentID, &courseID, &enrollmentID, &number, &issued, &score); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	return student.ReconstructCertificate(id, studentID, courseID, enrollmentID, number, issued, score), nil
}
