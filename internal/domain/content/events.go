package content

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/events"
)

// Event types raised by the Content context.
const (
	EventTypeCourseCreated     events.EventType = "CourseCreated"
	EventTypeLessonAdded       events.EventType = "LessonAdded"
	EventTypeLessonUpdated     events.EventType = "LessonUpdated"
	EventTypeCourseDeactivated events.EventType = "CourseDeactivated"
	EventTypeCourseReactivated events.EventType = "CourseReactivated"
)

// CourseCreatedEvent signals a new course in the catalogue.
type CourseCreatedEvent struct {
	events.Base
	CourseID uuid.UUID
	Name     string
	Price    decimal.Decimal
}

// NewCourseCreatedEvent creates a new course created event.
func NewCourseCreatedEvent(courseID uuid.UUID, name string, price decimal.Decimal, at time.Time) CourseCreatedEvent {
	return CourseCreatedEvent{
		Base:     events.NewBase(courseID.String(), at),
		CourseID: courseID,
		Name:     name,
		Price:    price,
	}
}

func (e CourseCreatedEvent) EventType() events.EventType { return EventTypeCourseCreated }

// LessonAddedEvent signals a lesson appended to a course.
type LessonAddedEvent struct {
	events.Base
	CourseID uuid.UUID
	LessonID uuid.UUID
	Order    int
	Required bool
}

// NewLessonAddedEvent creates a new lesson added event.
func NewLessonAddedEvent(courseID, lessonID uuid.UUID, order int, required bool, at time.Time) LessonAddedEvent {
	return LessonAddedEvent{
		Base:     events.NewBase(courseID.String(), at),
		CourseID: courseID,
		LessonID: lessonID,
		Order:    order,
		Required: required,
	}
}

func (e LessonAddedEvent) EventType() events.EventType { return EventTypeLessonAdded }

// LessonUpdatedEvent signals a change to a lesson's title, position or required flag.
type LessonUpdatedEvent struct {
	events.Base
	CourseID uuid.UUID
	LessonID uuid.UUID
}

// NewLessonUpdatedEvent creates a new lesson updated event.
func NewLessonUpdatedEvent(courseID, lessonID uuid.UUID, at time.Time) LessonUpdatedEvent {
	return LessonUpdatedEvent{
		Base:     events.NewBase(courseID.String(), at),
		CourseID: courseID,
		LessonID: lessonID,
	}
}

func (e LessonUpdatedEvent) EventType() events.EventType { return EventTypeLessonUpdated }

// CourseDeactivatedEvent signals a soft delete.
type CourseDeactivatedEvent struct {
	events.Base
	CourseID uuid.UUID
}

// NewCourseDeactivatedEvent creates a new course deactivated event.
func NewCourseDeactivatedEvent(courseID uuid.UUID, at time.Time) CourseDeactivatedEvent {
	return CourseDeactivatedEvent{Base: events.NewBase(courseID.String(), at), CourseID: courseID}
}

func (e CourseDeactivatedEvent) EventType() events.EventType { return EventTypeCourseDeactivated }

// CourseReactivatedEvent signals a soft-deleted course returning to the catalogue.
type CourseReactivatedEvent struct {
	events.Base
	CourseID uuid.UUID
}

// NewCourseReactivatedEvent creates a new course reactivated event.
func NewCourseReactivatedEvent(courseID uuid.UUID, at time.Time) CourseReactivatedEvent {
	return CourseReactivatedEvent{Base: events.NewBase(courseID.String(), at), CourseID: courseID}
}

func (e CourseReactivatedEvent) EventType() events.EventType { return EventTypeCourseReactivated }
