// Package postgres provides PostgreSQL-backed Content context stores.
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

	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/infra/storage"
)

var _ content.CourseRepository = (*courseStore)(nil)

// courseStore implements content.CourseRepository on PostgreSQL. Counter
// increments record their dedup key in course_counter_applications inside the
// same transaction as the increment, so a key is applied at most once.
type courseStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewCourseStore creates a new PostgreSQL-backed course repository with tracing capabilities.
func NewCourseStore(pool *pgxpool.Pool, tracer trace.Tracer) *courseStore {
	return &courseStore{db: pool, tracer: tracer}
}

// defaultDBAttributes defines standard OpenTelemetry attributes for database operations.
var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

const lessonPositionConstraint = "lessons_course_position_key"

func (r *courseStore) GetByID(ctx context.Context, id uuid.UUID) (*content.Course, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("course_id", id.String()))

	var course *content.Course
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_course", dbAttrs, func(ctx context.Context) error {
		var c courseRow
		err := r.db.QueryRow(ctx, `
			SELECT id, name, price, is_active, enrollment_count, created_at, updated_at
			FROM courses WHERE id = $1`, id,
		).Scan(&c.id, &c.name, &c.price, &c.isActive, &c.enrollmentCount, &c.createdAt, &c.updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("course", id)
		}
		if err != nil {
			return fmt.Errorf("get course query error: %w", err)
		}

		rows, err := r.db.Query(ctx, `
			SELECT id, title, position, required, completion_count
			FROM lessons WHERE course_id = $1 ORDER BY position`, id)
		if err != nil {
			return fmt.Errorf("get lessons query error: %w", err)
		}
		defer rows.Close()

		var lessons []*content.Lesson
		for rows.Next() {
			var (
				lessonID  uuid.UUID
				title     string
				position  int
				required  bool
				completed int64
			)
			if err := rows.Scan(&lessonID, &title, &position, &required, &completed); err != nil {
				return fmt.Errorf("scan lesson: %w", err)
			}
			lessons = append(lessons, content.ReconstructLesson(lessonID, id, title, position, required, completed))
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate lessons: %w", err)
		}

		course = content.ReconstructCourse(
			c.id, c.name, c.price, c.isActive, lessons, c.enrollmentCount, c.createdAt, c.updatedAt,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (r *courseStore) Add(ctx context.Context, c *content.Course) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("course_id", c.ID().String()),
		attribute.Int("lesson_count", len(c.Lessons())),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.add_course", dbAttrs, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `
			INSERT INTO courses (id, name, price, is_active, enrollment_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID(), c.Name(), c.Price(), c.IsActive(), c.EnrollmentCount(), c.CreatedAt(), c.UpdatedAt(),
		); err != nil {
			return fmt.Errorf("insert course: %w", err)
		}

		if err := upsertLessons(ctx, tx, c); err != nil {
			return err
		}
		return commit(ctx, tx, c)
	})
}

// Update writes name, price, activity and lessons. Counters are left alone;
// they only move through the increment methods.
func (r *courseStore) Update(ctx context.Context, c *content.Course) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("course_id", c.ID().String()),
		attribute.Bool("is_active", c.IsActive()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_course", dbAttrs, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, `
			UPDATE courses SET name = $2, price = $3, is_active = $4, updated_at = $5
			WHERE id = $1`,
			c.ID(), c.Name(), c.Price(), c.IsActive(), c.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("update course: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewNotFoundError("course", c.ID())
		}

		if err := upsertLessons(ctx, tx, c); err != nil {
			return err
		}
		return commit(ctx, tx, c)
	})
}

func (r *courseStore) IncrementEnrollmentCount(ctx context.Context, courseID uuid.UUID, key content.CounterKey) (bool, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("course_id", courseID.String()),
		attribute.String("dedup_key", string(key)),
	)

	var applied bool
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.increment_enrollment_count", dbAttrs, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		var one int
		err = tx.QueryRow(ctx, `SELECT 1 FROM courses WHERE id = $1 FOR UPDATE`, courseID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("course", courseID)
		}
		if err != nil {
			return fmt.Errorf("lock course: %w", err)
		}

		if applied, err = claimKey(ctx, tx, courseID, key); err != nil || !applied {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE courses SET enrollment_count = enrollment_count + 1 WHERE id = $1`, courseID,
		); err != nil {
			return fmt.Errorf("increment enrollment count: %w", err)
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *courseStore) IncrementLessonCompletionCount(
	ctx context.Context,
	courseID, lessonID uuid.UUID,
	key content.CounterKey,
) (bool, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("course_id", courseID.String()),
		attribute.String("lesson_id", lessonID.String()),
		attribute.String("dedup_key", string(key)),
	)

	var applied bool
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.increment_lesson_completion_count", dbAttrs, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		var one int
		err = tx.QueryRow(ctx,
			`SELECT 1 FROM lessons WHERE id = $1 AND course_id = $2 FOR UPDATE`, lessonID, courseID,
		).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return &content.UnknownLessonError{CourseID: courseID, LessonID: lessonID}
		}
		if err != nil {
			return fmt.Errorf("lock lesson: %w", err)
		}

		if applied, err = claimKey(ctx, tx, courseID, key); err != nil || !applied {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE lessons SET completion_count = completion_count + 1 WHERE id = $1`, lessonID,
		); err != nil {
			return fmt.Errorf("increment completion count: %w", err)
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

type courseRow struct {
	id              uuid.UUID
	name            string
	price           decimal.Decimal
	isActive        bool
	enrollmentCount int64
	createdAt       time.Time
	updatedAt       time.Time
}

// claimKey records a dedup key. It reports false when the key was applied before.
func claimKey(ctx context.Context, tx pgx.Tx, courseID uuid.UUID, key content.CounterKey) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO course_counter_applications (dedup_key, course_id) VALUES ($1, $2)
		ON CONFLICT (dedup_key) DO NOTHING`, string(key), courseID)
	if err != nil {
		return false, fmt.Errorf("claim counter key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func upsertLessons(ctx context.Context, tx pgx.Tx, c *content.Course) error {
	batch := &pgx.Batch{}
	for _, l := range c.Lessons() {
		batch.Queue(`
			INSERT INTO lessons (id, course_id, title, position, required)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title, position = EXCLUDED.position, required = EXCLUDED.required`,
			l.ID(), c.ID(), l.Title(), l.Order(), l.Required(),
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert lessons: %w", err)
	}
	return nil
}

// commit maps the deferred lesson position constraint onto the domain error.
func commit(ctx context.Context, tx pgx.Tx, c *content.Course) error {
	err := tx.Commit(ctx)
	if storage.IsUniqueViolation(err, lessonPositionConstraint) {
		return &content.DuplicateLessonOrderError{CourseID: c.ID()}
	}
	if err != nil {
		return fmt.Errorf("commit course %s: %w", c.ID(), err)
	}
	return nil
}
