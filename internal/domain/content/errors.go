package content

import (
	"fmt"

	"github.com/google/uuid"
)

// DuplicateLessonOrderError is returned when a lesson position is already taken.
type DuplicateLessonOrderError struct {
	CourseID uuid.UUID
	Order    int
	LessonID uuid.UUID
}

func (e *DuplicateLessonOrderError) Error() string {
	return fmt.Sprintf("course %s already has lesson %s at order %d", e.CourseID, e.LessonID, e.Order)
}

func (e *DuplicateLessonOrderError) StateConflict() {}

// UnknownLessonError is returned when a lesson does not belong to the course.
type UnknownLessonError struct {
	CourseID uuid.UUID
	LessonID uuid.UUID
}

func (e *UnknownLessonError) Error() string {
	return fmt.Sprintf("lesson %s does not belong to course %s", e.LessonID, e.CourseID)
}

func (e *UnknownLessonError) StateConflict() {}

// CourseInactiveError is returned when an operation requires an active course.
type CourseInactiveError struct{ CourseID uuid.UUID }

func (e *CourseInactiveError) Error() string {
	return fmt.Sprintf("course %s is not active", e.CourseID)
}

func (e *CourseInactiveError) StateConflict() {}
