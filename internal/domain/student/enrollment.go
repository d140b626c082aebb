package student

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

const enrollmentAggregate = "enrollment"

// Enrollment binds a student to a course and tracks the price they pay and
// where they are in the lifecycle. Status transitions are one-directional.
type Enrollment struct {
	id             uuid.UUID
	studentID      uuid.UUID
	courseID       uuid.UUID
	price          decimal.Decimal
	discount       shared.Discount
	finalPrice     decimal.Decimal
	status         EnrollmentStatus
	enrollmentDate time.Time
	completionDate *time.Time
	paymentID      uuid.UUID
	transactionID  string
	score          *float64
	refundedAmount decimal.Decimal
	updatedAt      time.Time

	events.Recorder
}

// NewEnrollment creates an enrollment in the CREATED state. The final price is
// price × (1 − discount) rounded to currency precision. Uniqueness per
// (student, course) is enforced by the caller and the store, not here.
func NewEnrollment(
	id, studentID, courseID uuid.UUID,
	price decimal.Decimal,
	discount shared.Discount,
	enrollmentDate time.Time,
) (*Enrollment, error) {
	if err := shared.ValidatePrice(price); err != nil {
		return nil, err
	}

	e := &Enrollment{
		id:             id,
		studentID:      studentID,
		courseID:       courseID,
		price:          shared.RoundCurrency(price),
		discount:       discount,
		finalPrice:     discount.Apply(price),
		status:         EnrollmentStatusCreated,
		enrollmentDate: enrollmentDate,
		refundedAmount: decimal.Zero,
		updatedAt:      enrollmentDate,
	}
	e.Record(NewEnrollmentCreatedEvent(e, enrollmentDate))
	return e, nil
}

// EnrollmentSnapshot carries the persisted fields of an Enrollment.
type EnrollmentSnapshot struct {
	ID             uuid.UUID
	StudentID      uuid.UUID
	CourseID       uuid.UUID
	Price          decimal.Decimal
	Discount       shared.Discount
	FinalPrice     decimal.Decimal
	Status         EnrollmentStatus
	EnrollmentDate time.Time
	CompletionDate *time.Time
	PaymentID      uuid.UUID
	TransactionID  string
	Score          *float64
	RefundedAmount decimal.Decimal
	UpdatedAt      time.Time
}

// ReconstructEnrollment rebuilds an Enrollment from stored fields.
// This should only be used by repositories when loading from storage.
func ReconstructEnrollment(s EnrollmentSnapshot) *Enrollment {
	return &Enrollment{
		id:             s.ID,
		studentID:      s.StudentID,
		courseID:       s.CourseID,
		price:          s.Price,
		discount:       s.Discount,
		finalPrice:     s.FinalPrice,
		status:         s.Status,
		enrollmentDate: s.EnrollmentDate,
		completionDate: s.CompletionDate,
		paymentID:      s.PaymentID,
		transactionID:  s.TransactionID,
		score:          s.Score,
		refundedAmount: s.RefundedAmount,
		updatedAt:      s.UpdatedAt,
	}
}

// Snapshot exports the persisted fields.
func (e *Enrollment) Snapshot() EnrollmentSnapshot {
	return EnrollmentSnapshot{
		ID:             e.id,
		StudentID:      e.studentID,
		CourseID:       e.courseID,
		Price:          e.price,
		Discount:       e.discount,
		FinalPrice:     e.finalPrice,
		Status:         e.status,
		EnrollmentDate: e.enrollmentDate,
		CompletionDate: e.completionDate,
		PaymentID:      e.paymentID,
		TransactionID:  e.transactionID,
		Score:          e.score,
		RefundedAmount: e.refundedAmount,
		UpdatedAt:      e.updatedAt,
	}
}

func (e *Enrollment) ID() uuid.UUID                   { return e.id }
func (e *Enrollment) StudentID() uuid.UUID            { return e.studentID }
func (e *Enrollment) CourseID() uuid.UUID             { return e.courseID }
func (e *Enrollment) Price() decimal.Decimal          { return e.price }
func (e *Enrollment) Discount() shared.Discount       { return e.discount }
func (e *Enrollment) FinalPrice() decimal.Decimal     { return e.finalPrice }
func (e *Enrollment) Status() EnrollmentStatus        { return e.status }
func (e *Enrollment) EnrollmentDate() time.Time       { return e.enrollmentDate }
func (e *Enrollment) CompletionDate() *time.Time      { return e.completionDate }
func (e *Enrollment) PaymentID() uuid.UUID            { return e.paymentID }
func (e *Enrollment) TransactionID() string           { return e.transactionID }
func (e *Enrollment) Score() *float64                 { return e.score }
func (e *Enrollment) RefundedAmount() decimal.Decimal { return e.refundedAmount }
func (e *Enrollment) UpdatedAt() time.Time            { return e.updatedAt }

// IsFree reports whether the enrollment needs no payment.
func (e *Enrollment) IsFree() bool { return e.finalPrice.IsZero() }

// RequestPayment moves a CREATED enrollment to PENDING_PAYMENT and links the
// payment opened for it.
func (e *Enrollment) RequestPayment(paymentID uuid.UUID, now time.Time) error {
	if e.status != EnrollmentStatusCreated || e.IsFree() {
		return e.transitionError("request payment for")
	}
	if err := e.transition(EnrollmentStatusPendingPayment, now); err != nil {
		return err
	}
	e.paymentID = paymentID

	e.Record(NewPaymentRequestedEvent(e, now))
	return nil
}

// ActivateFree activates a zero-priced enrollment without a payment.
func (e *Enrollment) ActivateFree(now time.Time) error {
	if e.status != EnrollmentStatusCreated || !e.IsFree() {
		return e.transitionError("activate without payment")
	}
	if err := e.transition(EnrollmentStatusActive, now); err != nil {
		return err
	}

	e.Record(NewStudentEnrolledEvent(e, now))
	return nil
}

// OnPaymentConfirmed activates the enrollment. A repeat delivery carrying the
// transaction id already recorded is a no-op and raises no event.
func (e *Enrollment) OnPaymentConfirmed(paymentID uuid.UUID, transactionID string, now time.Time) error {
	if e.status == EnrollmentStatusActive && e.transactionID != "" && e.transactionID == transactionID {
		return nil
	}
	if e.status != EnrollmentStatusPendingPayment {
		return e.transitionError("confirm payment for")
	}
	if e.paymentID != uuid.Nil && paymentID != e.paymentID {
		return &PaymentMismatchError{EnrollmentID: e.id, Expected: e.paymentID, Got: paymentID}
	}
	if err := e.transition(EnrollmentStatusActive, now); err != nil {
		return err
	}
	e.paymentID = paymentID
	e.transactionID = transactionID

	e.Record(NewStudentEnrolledEvent(e, now))
	return nil
}

// OnPaymentRejected rejects the enrollment. Nothing is valid afterwards; the
// student has to enroll again.
func (e *Enrollment) OnPaymentRejected(reason string, now time.Time) error {
	if e.status != EnrollmentStatusPendingPayment {
		return e.transitionError("reject payment for")
	}
	if err := e.transition(EnrollmentStatusRejected, now); err != nil {
		return err
	}

	e.Record(NewEnrollmentPaymentFailedEvent(e, reason, now))
	return nil
}

// CompleteCourse marks the enrollment COMPLETED. The student's CourseProgress
// for this enrollment must already be completed.
func (e *Enrollment) CompleteCourse(progress *CourseProgress, completionDate time.Time, score *float64) error {
	if e.status != EnrollmentStatusActive {
		return e.transitionError("complete")
	}
	if progress == nil || !progress.IsCompleted() {
		remaining := 0
		if progress != nil {
			remaining = progress.RemainingRequired()
		}
		return &CourseNotCompletedError{EnrollmentID: e.id, Remaining: remaining}
	}
	if score != nil && (*score < 0 || *score > 100) {
		return shared.NewValidationError("score", "must be between 0 and 100")
	}
	if err := e.transition(EnrollmentStatusCompleted, completionDate); err != nil {
		return err
	}
	completed := completionDate
	e.completionDate = &completed
	e.score = score

	e.Record(NewCourseCompletedForStudentEvent(e, completionDate))
	return nil
}

// RequestRefund asks the Payment context to refund part or all of what was
// paid. The status does not change here; it follows the refund result.
func (e *Enrollment) RequestRefund(amount decimal.Decimal, reason string, now time.Time) error {
	if e.status != EnrollmentStatusActive && e.status != EnrollmentStatusCompleted {
		return e.transitionError("refund")
	}
	if e.paymentID == uuid.Nil {
		return e.transitionError("refund unpaid")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "must be positive")
	}
	if !shared.IsCurrencyPrecise(amount) {
		return shared.NewValidationError("amount", "must not be finer than currency precision")
	}
	if refundable := e.Refundable(); amount.GreaterThan(refundable) {
		return &RefundExceedsPriceError{EnrollmentID: e.id, Requested: amount, Refundable: refundable}
	}

	e.updatedAt = now
	e.Record(NewEnrollmentRefundRequestedEvent(e, amount, reason, now))
	return nil
}

// ApplyRefund records a refund confirmed by the Payment context. A full refund
// ends the enrollment; a partial one leaves status and completion untouched.
func (e *Enrollment) ApplyRefund(amount decimal.Decimal, fullyRefunded bool, now time.Time) error {
	if e.status != EnrollmentStatusActive && e.status != EnrollmentStatusCompleted {
		return e.transitionError("apply refund to")
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "must be positive")
	}

	if fullyRefunded {
		if err := e.transition(EnrollmentStatusRefunded, now); err != nil {
			return err
		}
	}
	e.refundedAmount = e.refundedAmount.Add(amount)
	e.updatedAt = now

	e.Record(NewEnrollmentRefundedEvent(e, amount, fullyRefunded, now))
	return nil
}

// Refundable is what remains of the final price after earlier refunds.
func (e *Enrollment) Refundable() decimal.Decimal { return e.finalPrice.Sub(e.refundedAmount) }

func (e *Enrollment) transition(target EnrollmentStatus, now time.Time) error {
	if !e.status.validateTransition(target) {
		return e.transitionError("move to " + target.String())
	}
	e.status = target
	e.updatedAt = now
	return nil
}

func (e *Enrollment) transitionError(op string) error {
	return &shared.InvalidTransitionError{
		Aggregate: enrollmentAggregate,
		ID:        e.id.String(),
		From:      e.status.String(),
		Operation: op,
	}
}
