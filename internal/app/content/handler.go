package content

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/app/handling"
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/pkg/common/logger"
)

var _ events.EventHandler = (*CounterHandler)(nil)

// CounterHandler keeps the Content context's counters in step with Student
// events. Every increment is keyed so a repeated event never counts twice.
type CounterHandler struct {
	courses content.CourseRepository

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCounterHandler creates the Content context's counter handler.
func NewCounterHandler(courses content.CourseRepository, log *logger.Logger, tracer trace.Tracer) *CounterHandler {
	return &CounterHandler{
		courses: courses,
		logger:  log.With("component", "content_counter_handler"),
		tracer:  tracer,
	}
}

func (h *CounterHandler) HandlerName() string { return "content.counters" }

func (h *CounterHandler) SupportedEvents() []events.EventType {
	return []events.EventType{
		student.EventTypeStudentEnrolled,
		student.EventTypeLessonCompleted,
	}
}

// HandleEvent routes the event to the matching counter.
func (h *CounterHandler) HandleEvent(ctx context.Context, evt events.EventEnvelope) error {
	switch evt.Type {
	case student.EventTypeStudentEnrolled:
		return h.HandleStudentEnrolled(ctx, evt)
	case student.EventTypeLessonCompleted:
		return h.HandleLessonCompleted(ctx, evt)
	default:
		return fmt.Errorf("unsupported event type: %s", evt.Type)
	}
}

// HandleStudentEnrolled counts the enrollment against its course once.
func (h *CounterHandler) HandleStudentEnrolled(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "content_handler.handle_student_enrolled", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(student.StudentEnrolledEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("course_id", e.CourseID.String()),
			attribute.String("enrollment_id", e.EnrollmentID.String()),
		)

		applied, err := h.courses.IncrementEnrollmentCount(ctx, e.CourseID, content.EnrollmentCounterKey(e.CourseID, e.EnrollmentID))
		if err != nil {
			return fmt.Errorf("increment enrollment count (course_id: %s): %w", e.CourseID, err)
		}
		span.SetAttributes(attribute.Bool("applied", applied))
		if !applied {
			h.logger.Debug(ctx, "Enrollment already counted", "course_id", e.CourseID, "enrollment_id", e.EnrollmentID)
		}
		return nil
	})
}

// HandleLessonCompleted counts a lesson completion once per student.
func (h *CounterHandler) HandleLessonCompleted(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "content_handler.handle_lesson_completed", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(student.LessonCompletedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("course_id", e.CourseID.String()),
			attribute.String("lesson_id", e.LessonID.String()),
		)

		applied, err := h.courses.IncrementLessonCompletionCount(
			ctx, e.CourseID, e.LessonID, content.LessonCompletionCounterKey(e.LessonID, e.StudentID),
		)
		if err != nil {
			return fmt.Errorf("increment completion count (lesson_id: %s): %w", e.LessonID, err)
		}
		span.SetAttributes(attribute.Bool("applied", applied))
		return nil
	})
}
