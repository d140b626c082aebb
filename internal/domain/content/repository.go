package content

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CounterKey identifies the logical cause of a counter increment. A repository
// applies an increment at most once per key.
type CounterKey string

// EnrollmentCounterKey keys an enrollment counter increment by (course, enrollment).
func EnrollmentCounterKey(courseID, enrollmentID uuid.UUID) CounterKey {
	return CounterKey(fmt.Sprintf("enrollment:%s:%s", courseID, enrollmentID))
}

// LessonCompletionCounterKey keys a completion counter increment by (lesson, student).
func LessonCompletionCounterKey(lessonID, studentID uuid.UUID) CounterKey {
	return CounterKey(fmt.Sprintf("lesson_completion:%s:%s", lessonID, studentID))
}

// CourseRepository persists Course aggregates. It is owned by the Content
// context; other contexts read through CourseCatalog.
type CourseRepository interface {
	// GetByID loads a course with its lessons. Returns a shared.NotFoundError if missing.
	GetByID(ctx context.Context, id uuid.UUID) (*Course, error)

	// Add persists a new course and its lessons.
	Add(ctx context.Context, course *Course) error

	// Update persists changes to an existing course and its lessons. Counters
	// are not written by Update; they only move through the increment methods.
	Update(ctx context.Context, course *Course) error

	// IncrementEnrollmentCount adds one to the course's enrollment counter unless
	// key was already applied. Reports whether the increment happened.
	IncrementEnrollmentCount(ctx context.Context, courseID uuid.UUID, key CounterKey) (bool, error)

	// IncrementLessonCompletionCount adds one to a lesson's completion counter
	// unless key was already applied. Reports whether the increment happened.
	IncrementLessonCompletionCount(ctx context.Context, courseID, lessonID uuid.UUID, key CounterKey) (bool, error)
}

// CourseOutline is the read contract the Content context exposes to other
// contexts. It is a value snapshot, never a live aggregate.
type CourseOutline struct {
	CourseID          uuid.UUID       `json:"course_id"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	Active            bool            `json:"active"`
	LessonIDs         []uuid.UUID     `json:"lesson_ids"`
	RequiredLessonIDs []uuid.UUID     `json:"required_lesson_ids"`
}

// HasLesson reports whether lessonID belongs to the course.
func (o CourseOutline) HasLesson(lessonID uuid.UUID) bool {
	for _, id := range o.LessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// CourseCatalog answers cross-context read queries about courses.
type CourseCatalog interface {
	GetCourseOutline(ctx context.Context, courseID uuid.UUID) (CourseOutline, error)
}
