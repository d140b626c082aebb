// Package content implements the Content context's command services and its
// reactions to Student events.
package content

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/app/commands"
	"github.com/ahrav/academy/internal/app/handling"
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

// CreateCourseCommand opens a new, active course.
type CreateCourseCommand struct {
	Name  string          `json:"name" validate:"required,max=200"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
}

func (CreateCourseCommand) CommandName() string { return "create_course" }

// AddLessonCommand appends a lesson to a course.
type AddLessonCommand struct {
	CourseID uuid.UUID `json:"course_id" validate:"required"`
	Title    string    `json:"title" validate:"required,max=200"`
	Order    int       `json:"order" validate:"gte=1"`
	Required bool      `json:"required"`
}

func (AddLessonCommand) CommandName() string { return "add_lesson" }

// UpdateLessonCommand rewrites a lesson's title, position and required flag.
type UpdateLessonCommand struct {
	CourseID uuid.UUID `json:"course_id" validate:"required"`
	LessonID uuid.UUID `json:"lesson_id" validate:"required"`
	Title    string    `json:"title" validate:"required,max=200"`
	Order    int       `json:"order" validate:"gte=1"`
	Required bool      `json:"required"`
}

func (UpdateLessonCommand) CommandName() string { return "update_lesson" }

// Service runs Content commands. Each command persists the course and then
// publishes the events it raised.
type Service struct {
	courses   content.CourseRepository
	publisher events.DomainEventPublisher

	timeProv timeutil.Provider
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewService creates a Content service.
func NewService(
	courses content.CourseRepository,
	publisher events.DomainEventPublisher,
	tp timeutil.Provider,
	log *logger.Logger,
	tracer trace.Tracer,
) *Service {
	return &Service{
		courses:   courses,
		publisher: publisher,
		timeProv:  tp,
		logger:    log.With("component", "content_service"),
		tracer:    tracer,
	}
}

// CreateCourse creates and stores a course.
func (s *Service) CreateCourse(ctx context.Context, cmd CreateCourseCommand) (*content.Course, error) {
	ctx, span := s.tracer.Start(ctx, "content_service.create_course",
		trace.WithAttributes(attribute.String("name", cmd.Name)))
	defer span.End()

	if err := commands.Validate(cmd); err != nil {
		return nil, handling.RecordErr(span, err)
	}

	course, err := content.NewCourse(uuid.New(), cmd.Name, cmd.Price, s.timeProv.Now())
	if err != nil {
		return nil, handling.RecordErr(span, err)
	}
	if err := s.courses.Add(ctx, course); err != nil {
		return nil, handling.RecordErr(span, fmt.Errorf("add course: %w", err))
	}
	if err := events.PublishAll(ctx, s.publisher, course.PullEvents()); err != nil {
		return course, handling.RecordErr(span, err)
	}

	s.logger.Info(ctx, "Course created", "course_id", course.ID(), "price", course.Price().String())
	span.SetStatus(codes.Ok, "course created")
	return course, nil
}

// AddLesson adds a lesson to an existing course.
func (s *Service) AddLesson(ctx context.Context, cmd AddLessonCommand) (*content.Lesson, error) {
	ctx, span := s.tracer.Start(ctx, "content_service.add_lesson",
		trace.WithAttributes(
			attribute.String("course_id", cmd.CourseID.String()),
			attribute.Int("order", cmd.Order),
		))
	defer span.End()

	if err := commands.Validate(cmd); err != nil {
		return nil, handling.RecordErr(span, err)
	}

	course, err := s.courses.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return nil, handling.RecordErr(span, err)
	}
	lesson, err := course.AddLesson(uuid.New(), cmd.Title, cmd.Order, cmd.Required, s.timeProv.Now())
	if err != nil {
		return nil, handling.RecordErr(span, err)
	}
	if err := s.save(ctx, course); err != nil {
		return lesson, handling.RecordErr(span, err)
	}

	s.logger.Info(ctx, "Lesson added", "course_id", course.ID(), "lesson_id", lesson.ID(), "order", lesson.Order())
	return lesson, nil
}

// UpdateLesson changes a lesson in place.
func (s *Service) UpdateLesson(ctx context.Context, cmd UpdateLessonCommand) error {
	ctx, span := s.tracer.Start(ctx, "content_service.update_lesson",
		trace.WithAttributes(
			attribute.String("course_id", cmd.CourseID.String()),
			attribute.String("lesson_id", cmd.LessonID.String()),
		))
	defer span.End()

	if err := commands.Validate(cmd); err != nil {
		return handling.RecordErr(span, err)
	}

	course, err := s.courses.GetByID(ctx, cmd.CourseID)
	if err != nil {
		return handling.RecordErr(span, err)
	}
	if err := course.UpdateLesson(cmd.LessonID, cmd.Title, cmd.Order, cmd.Required, s.timeProv.Now()); err != nil {
		return handling.RecordErr(span, err)
	}
	return handling.RecordErr(span, s.save(ctx, course))
}

// DeactivateCourse hides a course from new enrollments. Deactivating an
// inactive course is a no-op.
func (s *Service) DeactivateCourse(ctx context.Context, courseID uuid.UUID) error {
	return s.toggle(ctx, "content_service.deactivate_course", courseID, (*content.Course).Deactivate)
}

// ReactivateCourse opens a deactivated course again.
func (s *Service) ReactivateCourse(ctx context.Context, courseID uuid.UUID) error {
	return s.toggle(ctx, "content_service.reactivate_course", courseID, (*content.Course).Reactivate)
}

// GetCourse loads a course with its lessons and counters.
func (s *Service) GetCourse(ctx context.Context, courseID uuid.UUID) (*content.Course, error) {
	ctx, span := s.tracer.Start(ctx, "content_service.get_course",
		trace.WithAttributes(attribute.String("course_id", courseID.String())))
	defer span.End()

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, handling.RecordErr(span, err)
	}
	return course, nil
}

func (s *Service) toggle(
	ctx context.Context,
	op string,
	courseID uuid.UUID,
	fn func(*content.Course, time.Time),
) error {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("course_id", courseID.String())))
	defer span.End()

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return handling.RecordErr(span, err)
	}
	fn(course, s.timeProv.Now())
	return handling.RecordErr(span, s.save(ctx, course))
}

// save persists the course and publishes whatever it raised. A course that
// raised nothing is not written.
func (s *Service) save(ctx context.Context, course *content.Course) error {
	evts := course.PullEvents()
	if len(evts) == 0 {
		return nil
	}
	if err := s.courses.Update(ctx, course); err != nil {
		return fmt.Errorf("update course %s: %w", course.ID(), err)
	}
	return events.PublishAll(ctx, s.publisher, evts)
}
