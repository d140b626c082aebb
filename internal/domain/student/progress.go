package student

import (
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

// CompletedLesson records when a lesson was completed.
type CompletedLesson struct {
	LessonID    uuid.UUID
	CompletedAt time.Time
}

// CourseProgress is the learning history of one enrollment. It is created when
// the enrollment becomes ACTIVE, completes at most once and is immutable after.
type CourseProgress struct {
	id              uuid.UUID
	enrollmentID    uuid.UUID
	studentID       uuid.UUID
	courseID        uuid.UUID
	lessonIDs       []uuid.UUID
	requiredLessons []uuid.UUID
	completed       []CompletedLesson
	isCompleted     bool
	completedAt     *time.Time
	updatedAt       time.Time

	events.Recorder
}

// NewCourseProgress starts an empty learning history for an enrollment.
// lessonIDs is the course's full lesson list and requiredIDs the subset that
// must be completed. When no lesson is flagged required, every lesson is.
func NewCourseProgress(
	id, enrollmentID, studentID, courseID uuid.UUID,
	lessonIDs, requiredIDs []uuid.UUID,
	now time.Time,
) *CourseProgress {
	p := &CourseProgress{
		id:           id,
		enrollmentID: enrollmentID,
		studentID:    studentID,
		courseID:     courseID,
		updatedAt:    now,
	}
	p.setOutline(lessonIDs, requiredIDs)
	return p
}

// CourseProgressSnapshot carries the persisted fields of a CourseProgress.
type CourseProgressSnapshot struct {
	ID              uuid.UUID
	EnrollmentID    uuid.UUID
	StudentID       uuid.UUID
	CourseID        uuid.UUID
	LessonIDs       []uuid.UUID
	RequiredLessons []uuid.UUID
	Completed       []CompletedLesson
	IsCompleted     bool
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// ReconstructCourseProgress rebuilds a CourseProgress from stored fields.
func ReconstructCourseProgress(s CourseProgressSnapshot) *CourseProgress {
	return &CourseProgress{
		id:              s.ID,
		enrollmentID:    s.EnrollmentID,
		studentID:       s.StudentID,
		courseID:        s.CourseID,
		lessonIDs:       s.LessonIDs,
		requiredLessons: s.RequiredLessons,
		completed:       s.Completed,
		isCompleted:     s.IsCompleted,
		completedAt:     s.CompletedAt,
		updatedAt:       s.UpdatedAt,
	}
}

// Snapshot exports the persisted fields.
func (p *CourseProgress) Snapshot() CourseProgressSnapshot {
	return CourseProgressSnapshot{
		ID:              p.id,
		EnrollmentID:    p.enrollmentID,
		StudentID:       p.studentID,
		CourseID:        p.courseID,
		LessonIDs:       append([]uuid.UUID(nil), p.lessonIDs...),
		RequiredLessons: append([]uuid.UUID(nil), p.requiredLessons...),
		Completed:       append([]CompletedLesson(nil), p.completed...),
		IsCompleted:     p.isCompleted,
		CompletedAt:     p.completedAt,
		UpdatedAt:       p.updatedAt,
	}
}

func (p *CourseProgress) ID() uuid.UUID           { return p.id }
func (p *CourseProgress) EnrollmentID() uuid.UUID { return p.enrollmentID }
func (p *CourseProgress) StudentID() uuid.UUID    { return p.studentID }
func (p *CourseProgress) CourseID() uuid.UUID     { return p.courseID }
func (p *CourseProgress) IsCompleted() bool       { return p.isCompleted }
func (p *CourseProgress) CompletedAt() *time.Time { return p.completedAt }

// CompletedLessons returns the completed lessons in completion order.
func (p *CourseProgress) CompletedLessons() []CompletedLesson {
	return append([]CompletedLesson(nil), p.completed...)
}

// RemainingRequired counts required lessons not yet completed.
func (p *CourseProgress) RemainingRequired() int {
	n := 0
	for _, id := range p.requiredLessons {
		if !p.hasCompleted(id) {
			n++
		}
	}
	return n
}

// SyncOutline refreshes the lesson list from the course before the progress
// completes, so lessons added after enrollment are tracked.
func (p *CourseProgress) SyncOutline(lessonIDs, requiredIDs []uuid.UUID) {
	if p.isCompleted {
		return
	}
	p.setOutline(lessonIDs, requiredIDs)
}

// CompleteLesson records a lesson as done. It reports whether anything
// changed; completing the same lesson twice is a no-op.
func (p *CourseProgress) CompleteLesson(lessonID uuid.UUID, at time.Time) (bool, error) {
	if !p.hasLesson(lessonID) {
		return false, &UnknownLessonError{CourseID: p.courseID, LessonID: lessonID}
	}
	if p.hasCompleted(lessonID) {
		return false, nil
	}
	if p.isCompleted {
		return false, &shared.InvalidTransitionError{
			Aggregate: "course_progress",
			ID:        p.id.String(),
			From:      "COMPLETED",
			Operation: "complete lesson for",
		}
	}

	p.completed = append(p.completed, CompletedLesson{LessonID: lessonID, CompletedAt: at})
	p.updatedAt = at
	p.Record(NewLessonCompletedEvent(p, lessonID, at))

	if len(p.requiredLessons) > 0 && p.RemainingRequired() == 0 {
		p.isCompleted = true
		completedAt := at
		p.completedAt = &completedAt
		p.Record(NewCourseProgressCompletedEvent(p, at))
	}
	return true, nil
}

func (p *CourseProgress) setOutline(lessonIDs, requiredIDs []uuid.UUID) {
	p.lessonIDs = append([]uuid.UUID(nil), lessonIDs...)
	if len(requiredIDs) == 0 {
		requiredIDs = lessonIDs
	}
	p.requiredLessons = append([]uuid.UUID(nil), requiredIDs...)
}

func (p *CourseProgress) hasLesson(id uuid.UUID) bool {
	for _, l := range p.lessonIDs {
		if l == id {
			return true
		}
	}
	return false
}

func (p *CourseProgress) hasCompleted(id uuid.UUID) bool {
	for _, c := range p.completed {
		if c.LessonID == id {
			return true
		}
	}
	return false
}
