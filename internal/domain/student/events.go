package student

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/events"
)

// Event types raised by the Student context.
const (
	EventTypeStudentRegistered  events.EventType = "StudentRegistered"
	EventTypeStudentDeactivated events.EventType = "StudentDeactivated"
	EventTypeStudentReactivated events.EventType = "StudentReactivated"

	EventTypeEnrollmentCreated         events.EventType = "EnrollmentCreated"
	EventTypePaymentRequested          events.EventType = "PaymentRequested"
	EventTypeStudentEnrolled           events.EventType = "StudentEnrolled"
	EventTypeEnrollmentPaymentFailed   events.EventType = "EnrollmentPaymentFailed"
	EventTypeCourseCompletedForStudent events.EventType = "CourseCompletedForStudent"
	EventTypeEnrollmentRefundRequested events.EventType = "EnrollmentRefundRequested"
	EventTypeEnrollmentRefunded        events.EventType = "EnrollmentRefunded"

	EventTypeLessonCompleted         events.EventType = "LessonCompleted"
	EventTypeCourseProgressCompleted events.EventType = "CourseProgressCompleted"

	EventTypeCertificateIssued events.EventType = "CertificateIssued"
)

// StudentRegisteredEvent signals a new student record.
type StudentRegisteredEvent struct {
	events.Base
	StudentID uuid.UUID
	Email     string
}

// NewStudentRegisteredEvent creates a new student registered event.
func NewStudentRegisteredEvent(studentID uuid.UUID, email string, at time.Time) StudentRegisteredEvent {
	return StudentRegisteredEvent{Base: events.NewBase(studentID.String(), at), StudentID: studentID, Email: email}
}

func (e StudentRegisteredEvent) EventType() events.EventType { return EventTypeStudentRegistered }

// StudentDeactivatedEvent signals a student toggled inactive.
type StudentDeactivatedEvent struct {
	events.Base
	StudentID uuid.UUID
}

// NewStudentDeactivatedEvent creates a new student deactivated event.
func NewStudentDeactivatedEvent(studentID uuid.UUID, at time.Time) StudentDeactivatedEvent {
	return StudentDeactivatedEvent{Base: events.NewBase(studentID.String(), at), StudentID: studentID}
}

func (e StudentDeactivatedEvent) EventType() events.EventType { return EventTypeStudentDeactivated }

// StudentReactivatedEvent signals a student toggled back to active.
type StudentReactivatedEvent struct {
	events.Base
	StudentID uuid.UUID
}

// NewStudentReactivatedEvent creates a new student reactivated event.
func NewStudentReactivatedEvent(studentID uuid.UUID, at time.Time) StudentReactivatedEvent {
	return StudentReactivatedEvent{Base: events.NewBase(studentID.String(), at), StudentID: studentID}
}

func (e StudentReactivatedEvent) EventType() events.EventType { return EventTypeStudentReactivated }

// EnrollmentCreatedEvent starts the enrollment choreography. The Payment
// context opens a payment for it unless the enrollment is free.
type EnrollmentCreatedEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	Price        decimal.Decimal
	Discount     decimal.Decimal
	FinalPrice   decimal.Decimal
}

// NewEnrollmentCreatedEvent creates a new enrollment created event.
func NewEnrollmentCreatedEvent(e *Enrollment, at time.Time) EnrollmentCreatedEvent {
	return EnrollmentCreatedEvent{
		Base:         events.NewBase(e.id.String(), at),
		EnrollmentID: e.id,
		StudentID:    e.studentID,
		CourseID:     e.courseID,
		Price:        e.price,
		Discount:     e.discount.Rate(),
		FinalPrice:   e.finalPrice,
	}
}

func (e EnrollmentCreatedEvent) EventType() events.EventType { return EventTypeEnrollmentCreated }

// PaymentRequestedEvent signals the enrollment now waits on the linked payment.
type PaymentRequestedEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	PaymentID    uuid.UUID
	StudentID    uuid.UUID
	FinalPrice   decimal.Decimal
}

// NewPaymentRequestedEvent creates a new payment requested event.
func NewPaymentRequestedEvent(e *Enrollment, at time.Time) PaymentRequestedEvent {
	return PaymentRequestedEvent{
		Base:         events.NewBase(e.id.String(), at),
		EnrollmentID: e.id,
		PaymentID:    e.paymentID,
		StudentID:    e.studentID,
		FinalPrice:   e.finalPrice,
	}
}

func (e PaymentRequestedEvent) EventType() events.EventType { return EventTypePaymentRequested }

// StudentEnrolledEvent signals an enrollment became ACTIVE.
type StudentEnrolledEvent struct {
	events.Base
	EnrollmentID  uuid.UUID
	StudentID     uuid.UUID
	CourseID      uuid.UUID
	TransactionID string
}

// NewStudentEnrolledEvent creates a new student enrolled event.
func NewStudentEnrolledEvent(e *Enrollment, at time.Time) StudentEnrolledEvent {
	return StudentEnrolledEvent{
		Base:          events.NewBase(e.id.String(), at),
		EnrollmentID:  e.id,
		StudentID:     e.studentID,
		CourseID:      e.courseID,
		TransactionID: e.transactionID,
	}
}

func (e StudentEnrolledEvent) EventType() events.EventType { return EventTypeStudentEnrolled }

// EnrollmentPaymentFailedEvent signals the enrollment was rejected because its
// payment was declined.
type EnrollmentPaymentFailedEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	Reason       string
}

// NewEnrollmentPaymentFailedEvent creates a new enrollment payment failed event.
func NewEnrollmentPaymentFailedEvent(e *Enrollment, reason string, at time.Time) EnrollmentPaymentFailedEvent {
	return EnrollmentPaymentFailedEvent{
		Base:         events.NewBase(e.id.String(), at),
		EnrollmentID: e.id,
		StudentID:    e.studentID,
		CourseID:     e.courseID,
		Reason:       reason,
	}
}

func (e EnrollmentPaymentFailedEvent) EventType() events.EventType {
	return EventTypeEnrollmentPaymentFailed
}

// CourseCompletedForStudentEvent triggers certificate issuance.
type CourseCompletedForStudentEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	CompletedAt  time.Time
	Score        *float64
}

// NewCourseCompletedForStudentEvent creates a new course completed for student event.
func NewCourseCompletedForStudentEvent(e *Enrollment, at time.Time) CourseCompletedForStudentEvent {
	return CourseCompletedForStudentEvent{
		Base:         events.NewBase(e.id.String(), at),
		EnrollmentID: e.id,
		StudentID:    e.studentID,
		CourseID:     e.courseID,
		CompletedAt:  at,
		Score:        e.score,
	}
}

func (e CourseCompletedForStudentEvent) EventType() events.EventType {
	return EventTypeCourseCompletedForStudent
}

// EnrollmentRefundRequestedEvent asks the Payment context to refund the
// enrollment's payment.
type EnrollmentRefundRequestedEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	PaymentID    uuid.UUID
	Amount       decimal.Decimal
	Reason       string
}

// NewEnrollmentRefundRequestedEvent creates a new enrollment refund requested event.
func NewEnrollmentRefundRequestedEvent(e *Enrollment, amount decimal.Decimal, reason string, at time.Time) EnrollmentRefundRequestedEvent {
	return EnrollmentRefundRequestedEvent{
		Base:         events.NewBase(e.id.String(), at),
		EnrollmentID: e.id,
		PaymentID:    e.paymentID,
		Amount:       amount,
		Reason:       reason,
	}
}

func (e EnrollmentRefundRequestedEvent) EventType() events.EventType {
	return EventTypeEnrollmentRefundRequested
}

// EnrollmentRefundedEvent signals the enrollment recorded a confirmed refund.
type EnrollmentRefundedEvent struct {
	events.Base
	EnrollmentID   uuid.UUID
	Amount         decimal.Decimal
	TotalRefunded  decimal.Decimal
	FullyRefunded  bool
	ResultingState EnrollmentStatus
}

// NewEnrollmentRefundedEvent creates a new enrollment refunded event.
func NewEnrollmentRefundedEvent(e *Enrollment, amount decimal.Decimal, full bool, at time.Time) EnrollmentRefundedEvent {
	return EnrollmentRefundedEvent{
		Base:           events.NewBase(e.id.String(), at),
		EnrollmentID:   e.id,
		Amount:         amount,
		TotalRefunded:  e.refundedAmount,
		FullyRefunded:  full,
		ResultingState: e.status,
	}
}

func (e EnrollmentRefundedEvent) EventType() events.EventType { return EventTypeEnrollmentRefunded }

// LessonCompletedEvent signals a student finished a lesson for the first time.
type LessonCompletedEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	LessonID     uuid.UUID
}

// NewLessonCompletedEvent creates a new lesson completed event.
func NewLessonCompletedEvent(p *CourseProgress, lessonID uuid.UUID, at time.Time) LessonCompletedEvent {
	return LessonCompletedEvent{
		Base:         events.NewBase(p.enrollmentID.String(), at),
		EnrollmentID: p.enrollmentID,
		StudentID:    p.studentID,
		CourseID:     p.courseID,
		LessonID:     lessonID,
	}
}

func (e LessonCompletedEvent) EventType() events.EventType { return EventTypeLessonCompleted }

// CourseProgressCompletedEvent signals every required lesson is done.
type CourseProgressCompletedEvent struct {
	events.Base
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	CourseID     uuid.UUID
}

// NewCourseProgressCompletedEvent creates a new course progress completed event.
func NewCourseProgressCompletedEvent(p *CourseProgress, at time.Time) CourseProgressCompletedEvent {
	return CourseProgressCompletedEvent{
		Base:         events.NewBase(p.enrollmentID.String(), at),
		EnrollmentID: p.enrollmentID,
		StudentID:    p.studentID,
		CourseID:     p.courseID,
	}
}

func (e CourseProgressCompletedEvent) EventType() events.EventType {
	return EventTypeCourseProgressCompleted
}

// CertificateIssuedEvent is the terminal step of the enrollment choreography.
type CertificateIssuedEvent struct {
	events.Base
	CertificateID uuid.UUID
	EnrollmentID  uuid.UUID
	StudentID     uuid.UUID
	CourseID      uuid.UUID
	Number        string
}

// NewCertificateIssuedEvent creates a new certificate issued event.
func NewCertificateIssuedEvent(c *Certificate, at time.Time) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		Base:          events.NewBase(c.id.String(), at),
		CertificateID: c.id,
		EnrollmentID:  c.enrollmentID,
		StudentID:     c.studentID,
		CourseID:      c.courseID,
		Number:        c.number,
	}
}

func (e CertificateIssuedEvent) EventType() events.EventType { return EventTypeCertificateIssued }
