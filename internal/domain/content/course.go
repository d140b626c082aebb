// Package content holds the Content bounded context: courses, their lessons
// and the counters other contexts drive through events.
package content

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

// Course is the aggregate root of the Content context. It owns the lesson list
// and the enrollment counter.
type Course struct {
	id              uuid.UUID
	name            string
	price           decimal.Decimal
	isActive        bool
	lessons         []*Lesson
	enrollmentCount int64
	createdAt       time.Time
	updatedAt       time.Time

	events.Recorder
}

// NewCourse creates an active course with no lessons.
func NewCourse(id uuid.UUID, name string, price decimal.Decimal, now time.Time) (*Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("name", "is required")
	}
	if err := shared.ValidatePrice(price); err != nil {
		return nil, err
	}

	c := &Course{
		id:        id,
		name:      name,
		price:     shared.RoundCurrency(price),
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}
	c.Record(NewCourseCreatedEvent(id, c.name, c.price, now))
	return c, nil
}

// ReconstructCourse rebuilds a Course from stored fields, bypassing creation invariants.
// This should only be used by repositories when loading from storage.
func ReconstructCourse(
	id uuid.UUID,
	name string,
	price decimal.Decimal,
	isActive bool,
	lessons []*Lesson,
	enrollmentCount int64,
	createdAt, updatedAt time.Time,
) *Course {
	c := &Course{
		id:              id,
		name:            name,
		price:           price,
		isActive:        isActive,
		lessons:         lessons,
		enrollmentCount: enrollmentCount,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
	c.sortLessons()
	return c
}

func (c *Course) ID() uuid.UUID          { return c.id }
func (c *Course) Name() string           { return c.name }
func (c *Course) Price() decimal.Decimal { return c.price }
func (c *Course) IsActive() bool         { return c.isActive }
func (c *Course) EnrollmentCount() int64 { return c.enrollmentCount }
func (c *Course) CreatedAt() time.Time   { return c.createdAt }
func (c *Course) UpdatedAt() time.Time   { return c.updatedAt }

// Lessons returns the course's lessons ordered by their position.
func (c *Course) Lessons() []*Lesson {
	out := make([]*Lesson, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// Lesson looks up a lesson by id.
func (c *Course) Lesson(lessonID uuid.UUID) (*Lesson, bool) {
	for _, l := range c.lessons {
		if l.id == lessonID {
			return l, true
		}
	}
	return nil, false
}

// RequiredLessonIDs lists the lessons a student must complete to finish the course.
func (c *Course) RequiredLessonIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.lessons))
	for _, l := range c.lessons {
		if l.required {
			ids = append(ids, l.id)
		}
	}
	return ids
}

// AddLesson appends a lesson at the given position. Positions are unique within a course.
func (c *Course) AddLesson(lessonID uuid.UUID, title string, order int, required bool, now time.Time) (*Lesson, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewValidationError("title", "is required")
	}
	if order < 1 {
		return nil, shared.NewValidationError("order", fmt.Sprintf("must be >= 1, got %d", order))
	}
	if existing := c.lessonAtOrder(order, uuid.Nil); existing != nil {
		return nil, &DuplicateLessonOrderError{CourseID: c.id, Order: order, LessonID: existing.id}
	}

	l := &Lesson{id: lessonID, courseID: c.id, title: title, order: order, required: required}
	c.lessons = append(c.lessons, l)
	c.sortLessons()
	c.updatedAt = now

	c.Record(NewLessonAddedEvent(c.id, lessonID, order, required, now))
	return l, nil
}

// UpdateLesson changes a lesson's title, position or required flag.
func (c *Course) UpdateLesson(lessonID uuid.UUID, title string, order int, required bool, now time.Time) error {
	l, ok := c.Lesson(lessonID)
	if !ok {
		return &UnknownLessonError{CourseID: c.id, LessonID: lessonID}
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return shared.NewValidationError("title", "is required")
	}
	if order < 1 {
		return shared.NewValidationError("order", fmt.Sprintf("must be >= 1, got %d", order))
	}
	if existing := c.lessonAtOrder(order, lessonID); existing != nil {
		return &DuplicateLessonOrderError{CourseID: c.id, Order: order, LessonID: existing.id}
	}

	l.title, l.order, l.required = title, order, required
	c.sortLessons()
	c.updatedAt = now
	c.Record(NewLessonUpdatedEvent(c.id, lessonID, now))
	return nil
}

// Deactivate soft-deletes the course. Courses referenced by enrollments are
// never removed, only hidden from new enrollments.
func (c *Course) Deactivate(now time.Time) {
	if !c.isActive {
		return
	}
	c.isActive = false
	c.updatedAt = now
	c.Record(NewCourseDeactivatedEvent(c.id, now))
}

// Reactivate makes a soft-deleted course available again.
func (c *Course) Reactivate(now time.Time) {
	if c.isActive {
		return
	}
	c.isActive = true
	c.updatedAt = now
	c.Record(NewCourseReactivatedEvent(c.id, now))
}

// IncrementEnrollmentCount bumps the enrollment counter by one. Deduplication of
// the triggering event is the repository's job; the aggregate only counts.
func (c *Course) IncrementEnrollmentCount() { c.enrollmentCount++ }

// IncrementCompletionCount bumps the completion counter of a lesson.
func (c *Course) IncrementCompletionCount(lessonID uuid.UUID) error {
	l, ok := c.Lesson(lessonID)
	if !ok {
		return &UnknownLessonError{CourseID: c.id, LessonID: lessonID}
	}
	l.completionCount++
	return nil
}

// Outline projects the course into the read contract other contexts consume.
func (c *Course) Outline() CourseOutline {
	lessonIDs := make([]uuid.UUID, 0, len(c.lessons))
	for _, l := range c.lessons {
		lessonIDs = append(lessonIDs, l.id)
	}
	return CourseOutline{
		CourseID:          c.id,
		Name:              c.name,
		Price:             c.price,
		Active:            c.isActive,
		LessonIDs:         lessonIDs,
		RequiredLessonIDs: c.RequiredLessonIDs(),
	}
}

func (c *Course) lessonAtOrder(order int, exclude uuid.UUID) *Lesson {
	for _, l := range c.lessons {
		if l.order == order && l.id != exclude {
			return l
		}
	}
	return nil
}

func (c *Course) sortLessons() {
	sort.SliceStable(c.lessons, func(i, j int) bool { return c.lessons[i].order < c.lessons[j].order })
}
