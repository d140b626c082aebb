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

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/internal/infra/storage"
)

var _ student.ProgressRepository = (*progressStore)(nil)

// progressStore implements student.ProgressRepository. Completed lessons live
// in their own table so repeat completions collapse on the primary key.
type progressStore struct {
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewProgressStore creates a new PostgreSQL-backed course progress repository with tracing capabilities.
func NewProgressStore(pool *pgxpool.Pool, tracer trace.Tracer) *progressStore {
	return &progressStore{db: pool, tracer: tracer}
}

func (r *progressStore) GetByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*student.CourseProgress, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("enrollment_id", enrollmentID.String()))

	var p *student.CourseProgress
	err := storage.ExecuteAndTrace(ctx, r.tracer, "postgres.get_course_progress", dbAttrs, func(ctx context.Context) error {
		var (
			s                 student.CourseProgressSnapshot
			lessonIDs, reqIDs []string
		)
		err := r.db.QueryRow(ctx, `
			SELECT id, enrollment_id, student_id, course_id, lesson_ids, required_lessons,
			       is_completed, completed_at, updated_at
			FROM course_progress WHERE enrollment_id = $1`, enrollmentID,
		).Scan(&s.ID, &s.EnrollmentID, &s.StudentID, &s.CourseID, &lessonIDs, &reqIDs,
			&s.IsCompleted, &s.CompletedAt, &s.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.NewNotFoundError("course progress", enrollmentID)
		}
		if err != nil {
			return fmt.Errorf("get course progress query error: %w", err)
		}

		if s.LessonIDs, err = parseUUIDs(lessonIDs); err != nil {
			return err
		}
		if s.RequiredLessons, err = parseUUIDs(reqIDs); err != nil {
			return err
		}

		rows, err := r.db.Query(ctx, `
			SELECT lesson_id, completed_at FROM completed_lessons
			WHERE progress_id = $1 ORDER BY completed_at, lesson_id`, s.ID)
		if err != nil {
			return fmt.Errorf("get completed lessons query error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var cl student.CompletedLesson
			if err := rows.Scan(&cl.LessonID, &cl.CompletedAt); err != nil {
				return fmt.Errorf("scan completed lesson: %w", err)
			}
			s.Completed = append(s.Completed, cl)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate completed lessons: %w", err)
		}

		p = student.ReconstructCourseProgress(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *progressStore) Add(ctx context.Context, p *student.CourseProgress) error {
	s := p.Snapshot()
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("progress_id", s.ID.String()),
		attribute.String("enrollment_id", s.EnrollmentID.String()),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.add_course_progress", dbAttrs, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, `
			INSERT INTO course_progress (
				id, enrollment_id, student_id, course_id, lesson_ids, required_lessons,
				is_completed, completed_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			s.ID, s.EnrollmentID, s.StudentID, s.CourseID, formatUUIDs(s.LessonIDs), formatUUIDs(s.RequiredLessons),
			s.IsCompleted, s.CompletedAt, s.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert course progress: %w", err)
		}

		if err := insertCompleted(ctx, tx, s); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

func (r *progressStore) Update(ctx context.Context, p *student.CourseProgress) error {
	s := p.Snapshot()
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("progress_id", s.ID.String()),
		attribute.Bool("is_completed", s.IsCompleted),
		attribute.Int("completed_lessons", len(s.Completed)),
	)

	return storage.ExecuteAndTrace(ctx, r.tracer, "postgres.update_course_progress", dbAttrs, func(ctx context.Context) error {
		tx, err := r.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx, `
			UPDATE course_progress SET
				lesson_ids = $2, required_lessons = $3, is_completed = $4, completed_at = $5, updated_at = $6
			WHERE id = $1`,
			s.ID, formatUUIDs(s.LessonIDs), formatUUIDs(s.RequiredLessons), s.IsCompleted, s.CompletedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update course progress: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewNotFoundError("course progress", s.EnrollmentID)
		}

		if err := insertCompleted(ctx, tx, s); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

func insertCompleted(ctx context.Context, tx pgx.Tx, s student.CourseProgressSnapshot) error {
	if len(s.Completed) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, cl := range s.Completed {
		batch.Queue(`
			INSERT INTO completed_lessons (progress_id, lesson_id, completed_at) VALUES ($1, $2, $3)
			ON CONFLICT (progress_id, lesson_id) DO NOTHING`,
			s.ID, cl.LessonID, cl.CompletedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert completed lessons: %w", err)
	}
	return nil
}

func formatUUIDs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse stored lesson id %q: %w", r, err)
		}
		out = append(out, id)
	}
	return out, nil
}
