// Package postgres provides PostgreSQL-backed Student context stores.
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

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

var _ student.StudentRepository = (*studentStore)(nil)

type studentStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewStudentStore creates a new PostgreSQL-backed student repository with tracing capabilities.
func NewStudentStore(pool *pgxpool.Pool, tracer trace.Tracer) *studentStore {
	return &studentStore{db: pool, tracer: tracer}
}

func (r *studentStore) GetByID(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("student_id", id.String()))

	var s *student.Student
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_student", dbAttrs, func(ctx context.Context) error {
		var row struct {
			first, last, email string
			active             bool
		}
		var created, updated time.Time
		err := r.db.QueryRow(ctx, `
			SELECT first_name, last_name, email, is_active, created_at, updated_at
			FROM students WHERE id = $1`, id,
		).Scan(&row.first, &row.last, &row.email, &row.active, &created, &updated)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("student", id)
		}
		if err != nil {
			return fmt.Errorf("get student query error: %w", err)
		}

		s = student.ReconstructStudent(id, row.first, row.last, row.email, row.active, created, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *studentStore) Add(ctx context.Context, s *student.Student) error {
	dbAttrs := append(defaultDBAttributes, attribute.String("student_id", s.ID().String()))

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.add_student", dbAttrs, func(ctx context.Context) error {
		_, err := r.db.Exec(ctx, `
			INSERT INTO students (id, first_name, last_name, email, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID(), s.FirstName(), s.LastName(), s.Email(), s.IsActive(), s.CreatedAt(), s.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("insert student: %w", err)
		}
		return nil
	})
}

func (r *studentStore) Update(ctx context.Context, s *student.Student) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("student_id", s.ID().String()),
		attribute.Bool("is_active", s.IsActive()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_student", dbAttrs, func(ctx context.Context) error {
		tag, err := r.db.Exec(ctx, `
			UPDATE students SET first_name = $2, last_name = $3, email = $4, is_active = $5, updated_at = $6
			WHERE id = $1`,
			s.ID(), s.FirstName(), s.LastName(), s.Email(), s.IsActive(), s.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewNotFoundError("student", s.ID())
		}
		return nil
	})
}
