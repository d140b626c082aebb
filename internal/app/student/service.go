// Package student implements the Student context's command services and its
// reactions to Payment events.
package student

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/app/commands"
	"github.com/ahrav/academy/internal/app/handling"
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

// RegisterStudentCommand registers a new student.
type RegisterStudentCommand struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
}

func (RegisterStudentCommand) CommandName() string { return "register_student" }

// CreateEnrollmentCommand enrolls a student in a course at an optional discount.
type CreateEnrollmentCommand struct {
	StudentID uuid.UUID       `json:"student_id" validate:"required"`
	CourseID  uuid.UUID       `json:"course_id" validate:"required"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0,lte=1"`
}

func (CreateEnrollmentCommand) CommandName() string { return "create_enrollment" }

// CompleteLessonCommand records that the enrolled student finished a lesson.
type CompleteLessonCommand struct {
	EnrollmentID uuid.UUID `json:"enrollment_id" validate:"required"`
	LessonID     uuid.UUID `json:"lesson_id" validate:"required"`
}

func (CompleteLessonCommand) CommandName() string { return "complete_lesson_for_student" }

// CompleteCourseCommand closes an enrollment whose required lessons are done.
type CompleteCourseCommand struct {
	EnrollmentID uuid.UUID `json:"enrollment_id" validate:"required"`
	Score        *float64  `json:"score" validate:"omitempty,gte=0,lte=100"`
}

func (CompleteCourseCommand) CommandName() string { return "complete_course_for_student" }

// GenerateCertificateCommand issues the certificate of a completed enrollment.
type GenerateCertificateCommand struct {
	EnrollmentID uuid.UUID `json:"enrollment_id" validate:"required"`
}

func (GenerateCertificateCommand) CommandName() string { return "generate_certificate" }

// RefundEnrollmentCommand asks for part or all of an enrollment's payment back.
type RefundEnrollmentCommand struct {
	EnrollmentID uuid.UUID       `json:"enrollment_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason       string          `json:"reason" validate:"max=500"`
}

func (RefundEnrollmentCommand) CommandName() string { return "refund_enrollment" }

// Repositories groups the Student context's stores.
type Repositories struct {
	Students     student.StudentRepository
	Enrollments  student.EnrollmentRepository
	Progress     student.ProgressRepository
	Certificates student.CertificateRepository
}

// Service runs Student commands. Commands that start a choreography return
// the enrollment as stored once the chain has run; when a downstream handler
// fails, whatever was committed is returned alongside the error.
type Service struct {
	students     student.StudentRepository
	enrollments  student.EnrollmentRepository
	progress     student.ProgressRepository
	certificates student.CertificateRepository
	catalog      content.CourseCatalog
	publisher    events.DomainEventPublisher

	timeProv timeutil.Provider
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewService creates a Student service.
func NewService(
	repos Repositories,
	catalog content.CourseCatalog,
	publisher events.DomainEventPublisher,
	tp timeutil.Provider,
	log *logger.Logger,
	tracer trace.Tracer,
) *Service {
	return &Service{
		students:     repos.Students,
		enrollments:  repos.Enrollments,
		progress:     repos.Progress,
		certificates: repos.Certificates,
		catalog:      catalog,
		publisher:    publisher,
		timeProv:     tp,
		logger:       log.With("component", "student_service"),
		tracer:       tracer,
	}
}

// RegisterStudent creates an active student.
func (s *Service) RegisterStudent(ctx context.Context, cmd RegisterStudentCommand) (*student.Student, error) {
	var st *student.Student
	err := handling.WithSpan(ctx, s.tracer, "student_service.register_student", func(ctx context.Context, _ trace.Span) error {
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		var err error
		if st, err = student.RegisterStudent(uuid.New(), cmd.FirstName, cmd.LastName, cmd.Email, s.timeProv.Now()); err != nil {
			return err
		}
		if err := s.students.Add(ctx, st); err != nil {
			st = nil
			return fmt.Errorf("add student: %w", err)
		}
		s.logger.Info(ctx, "Student registered", "student_id", st.ID())
		return events.PublishAll(ctx, s.publisher, st.PullEvents())
	})
	return st, err
}

// DeactivateStudent blocks new enrollments for the student.
func (s *Service) DeactivateStudent(ctx context.Context, studentID uuid.UUID) error {
	return s.toggleStudent(ctx, "student_service.deactivate_student", studentID, (*student.Student).Deactivate)
}

// ReactivateStudent allows the student to enroll again.
func (s *Service) ReactivateStudent(ctx context.Context, studentID uuid.UUID) error {
	return s.toggleStudent(ctx, "student_service.reactivate_student", studentID, (*student.Student).Reactivate)
}

// GetStudent loads a student.
func (s *Service) GetStudent(ctx context.Context, studentID uuid.UUID) (*student.Student, error) {
	return s.students.GetByID(ctx, studentID)
}

// CreateEnrollment enrolls an active student in an active course at the
// course's current price. The payment choreography runs before it returns.
func (s *Service) CreateEnrollment(ctx context.Context, cmd CreateEnrollmentCommand) (*student.Enrollment, error) {
	var enrollmentID uuid.UUID
	err := handling.WithSpan(ctx, s.tracer, "student_service.create_enrollment", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("student_id", cmd.StudentID.String()),
			attribute.String("course_id", cmd.CourseID.String()),
		)
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		st, err := s.students.GetByID(ctx, cmd.StudentID)
		if err != nil {
			return err
		}
		if !st.IsActive() {
			return shared.NewValidationError("student_id", "student is inactive")
		}

		outline, err := s.catalog.GetCourseOutline(ctx, cmd.CourseID)
		if err != nil {
			return err
		}
		if !outline.Active {
			return &content.CourseInactiveError{CourseID: cmd.CourseID}
		}

		open, err := s.enrollments.FindOpen(ctx, cmd.StudentID, cmd.CourseID)
		switch {
		case err == nil:
			return &student.DuplicateEnrollmentError{StudentID: cmd.StudentID, CourseID: cmd.CourseID, EnrollmentID: open.ID()}
		case !errors.Is(err, shared.ErrNotFound):
			return fmt.Errorf("find open enrollment: %w", err)
		}

		discount, err := shared.NewDiscount(cmd.Discount)
		if err != nil {
			return err
		}
		e, err := student.NewEnrollment(uuid.New(), cmd.StudentID, cmd.CourseID, outline.Price, discount, s.timeProv.Now())
		if err != nil {
			return err
		}
		if err := s.enrollments.Add(ctx, e); err != nil {
			return err
		}
		enrollmentID = e.ID()
		span.SetAttributes(
			attribute.String("enrollment_id", e.ID().String()),
			attribute.String("final_price", e.FinalPrice().String()),
		)
		s.logger.Info(ctx, "Enrollment created",
			"enrollment_id", e.ID(),
			"student_id", e.StudentID(),
			"course_id", e.CourseID(),
			"final_price", e.FinalPrice().String(),
		)
		return events.PublishAll(ctx, s.publisher, e.PullEvents())
	})
	return s.reload(ctx, enrollmentID, err)
}

// CompleteLessonForStudent records a finished lesson. The lesson must belong
// to the course and the enrollment must be ACTIVE. Completing a lesson twice
// is a no-op.
func (s *Service) CompleteLessonForStudent(ctx context.Context, cmd CompleteLessonCommand) (*student.CourseProgress, error) {
	var (
		progress *student.CourseProgress
		saved    bool
	)
	err := handling.WithSpan(ctx, s.tracer, "student_service.complete_lesson", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("enrollment_id", cmd.EnrollmentID.String()),
			attribute.String("lesson_id", cmd.LessonID.String()),
		)
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		e, err := s.enrollments.GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		if e.Status() != student.EnrollmentStatusActive {
			return &shared.InvalidTransitionError{
				Aggregate: "enrollment",
				ID:        e.ID().String(),
				From:      e.Status().String(),
				Operation: "complete lesson for",
			}
		}

		if progress, err = s.progress.GetByEnrollmentID(ctx, e.ID()); err != nil {
			return err
		}
		if !progress.IsCompleted() {
			outline, err := s.catalog.GetCourseOutline(ctx, e.CourseID())
			if err != nil {
				return err
			}
			progress.SyncOutline(outline.LessonIDs, outline.RequiredLessonIDs)
		}

		changed, err := progress.CompleteLesson(cmd.LessonID, s.timeProv.Now())
		if err != nil {
			return err
		}
		if !changed {
			span.AddEvent("lesson_already_completed")
			return nil
		}
		if err := s.progress.Update(ctx, progress); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		saved = true

		s.logger.Info(ctx, "Lesson completed",
			"enrollment_id", e.ID(),
			"lesson_id", cmd.LessonID,
			"remaining_required", progress.RemainingRequired(),
		)
		return events.PublishAll(ctx, s.publisher, progress.PullEvents())
	})
	if err != nil && !saved {
		return nil, err
	}
	return progress, err
}

// CompleteCourseForStudent marks the enrollment COMPLETED once its progress
// covers every required lesson. Certificate issuance follows in the chain.
func (s *Service) CompleteCourseForStudent(ctx context.Context, cmd CompleteCourseCommand) (*student.Enrollment, error) {
	var enrollmentID uuid.UUID
	err := handling.WithSpan(ctx, s.tracer, "student_service.complete_course", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("enrollment_id", cmd.EnrollmentID.String()))
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		e, err := s.enrollments.GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		progress, err := s.progress.GetByEnrollmentID(ctx, e.ID())
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if err := e.CompleteCourse(progress, s.timeProv.Now(), cmd.Score); err != nil {
			return err
		}
		if err := s.enrollments.Update(ctx, e); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		enrollmentID = e.ID()

		s.logger.Info(ctx, "Course completed", "enrollment_id", e.ID(), "course_id", e.CourseID())
		return events.PublishAll(ctx, s.publisher, e.PullEvents())
	})
	return s.reload(ctx, enrollmentID, err)
}

// GenerateCertificate issues the certificate for a COMPLETED enrollment. A
// pair that already holds one gets a DuplicateCertificateError.
func (s *Service) GenerateCertificate(ctx context.Context, cmd GenerateCertificateCommand) (*student.Certificate, error) {
	var cert *student.Certificate
	err := handling.WithSpan(ctx, s.tracer, "student_service.generate_certificate", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("enrollment_id", cmd.EnrollmentID.String()))
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		e, err := s.enrollments.GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		cert, err = s.issueCertificate(ctx, e)
		return err
	})
	return cert, err
}

// GetCertificate loads a certificate.
func (s *Service) GetCertificate(ctx context.Context, certificateID uuid.UUID) (*student.Certificate, error) {
	return s.certificates.GetByID(ctx, certificateID)
}

// RefundEnrollment asks the Payment context to refund the enrollment. The
// refund is applied to the enrollment when PaymentRefunded comes back.
func (s *Service) RefundEnrollment(ctx context.Context, cmd RefundEnrollmentCommand) (*student.Enrollment, error) {
	var enrollmentID uuid.UUID
	err := handling.WithSpan(ctx, s.tracer, "student_service.refund_enrollment", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("enrollment_id", cmd.EnrollmentID.String()),
			attribute.String("amount", cmd.Amount.String()),
		)
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		e, err := s.enrollments.GetByID(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		if err := e.RequestRefund(cmd.Amount, cmd.Reason, s.timeProv.Now()); err != nil {
			return err
		}
		if err := s.enrollments.Update(ctx, e); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}
		enrollmentID = e.ID()

		s.logger.Info(ctx, "Refund requested", "enrollment_id", e.ID(), "amount", cmd.Amount.String())
		return events.PublishAll(ctx, s.publisher, e.PullEvents())
	})
	return s.reload(ctx, enrollmentID, err)
}

// GetEnrollment loads an enrollment.
func (s *Service) GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*student.Enrollment, error) {
	return s.enrollments.GetByID(ctx, enrollmentID)
}

// GetProgress loads the learning history of an enrollment.
func (s *Service) GetProgress(ctx context.Context, enrollmentID uuid.UUID) (*student.CourseProgress, error) {
	return s.progress.GetByEnrollmentID(ctx, enrollmentID)
}

func (s *Service) toggleStudent(
	ctx context.Context,
	op string,
	studentID uuid.UUID,
	fn func(*student.Student, time.Time),
) error {
	return handling.WithSpan(ctx, s.tracer, op, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("student_id", studentID.String()))

		st, err := s.students.GetByID(ctx, studentID)
		if err != nil {
			return err
		}
		fn(st, s.timeProv.Now())
		evts := st.PullEvents()
		if len(evts) == 0 {
			return nil
		}
		if err := s.students.Update(ctx, st); err != nil {
			return fmt.Errorf("update student: %w", err)
		}
		return events.PublishAll(ctx, s.publisher, evts)
	})
}

// reload returns the enrollment as stored after a chain ran. An enrollment
// that was never persisted is not returned.
func (s *Service) reload(ctx context.Context, enrollmentID uuid.UUID, chainErr error) (*student.Enrollment, error) {
	if enrollmentID == uuid.Nil {
		return nil, chainErr
	}
	e, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, errors.Join(chainErr, err)
	}
	return e, chainErr
}

// activate creates the learning history of an enrollment that just became
// ACTIVE. An existing history is left as is.
func (s *Service) activate(ctx context.Context, e *student.Enrollment) error {
	if _, err := s.progress.GetByEnrollmentID(ctx, e.ID()); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	outline, err := s.catalog.GetCourseOutline(ctx, e.CourseID())
	if err != nil {
		return fmt.Errorf("course outline: %w", err)
	}
	p := student.NewCourseProgress(
		uuid.New(), e.ID(), e.StudentID(), e.CourseID(),
		outline.LessonIDs, outline.RequiredLessonIDs, s.timeProv.Now(),
	)
	if err := s.progress.Add(ctx, p); err != nil {
		return fmt.Errorf("add progress: %w", err)
	}
	return nil
}

func (s *Service) issueCertificate(ctx context.Context, e *student.Enrollment) (*student.Certificate, error) {
	_, err := s.certificates.FindByStudentCourse(ctx, e.StudentID(), e.CourseID())
	switch {
	case err == nil:
		return nil, &student.DuplicateCertificateError{StudentID: e.StudentID(), CourseID: e.CourseID()}
	case !errors.Is(err, shared.ErrNotFound):
		return nil, fmt.Errorf("find certificate: %w", err)
	}

	cert, err := student.IssueCertificate(uuid.New(), e, s.timeProv.Now())
	if err != nil {
		return nil, err
	}
	if err := s.certificates.Add(ctx, cert); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Certificate issued",
		"certificate_id", cert.ID(),
		"number", cert.Number(),
		"enrollment_id", e.ID(),
	)
	return cert, events.PublishAll(ctx, s.publisher, cert.PullEvents())
}
