package student

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DuplicateEnrollmentError is returned when the student already holds a
// created, pending or active enrollment for the course.
type DuplicateEnrollmentError struct {
	StudentID    uuid.UUID
	CourseID     uuid.UUID
	EnrollmentID uuid.UUID
}

func (e *DuplicateEnrollmentError) Error() string {
	if e.EnrollmentID == uuid.Nil {
		return fmt.Sprintf("student %s already has an open enrollment for course %s", e.StudentID, e.CourseID)
	}
	return fmt.Sprintf("student %s already has open enrollment %s for course %s", e.StudentID, e.EnrollmentID, e.CourseID)
}

func (e *DuplicateEnrollmentError) StateConflict() {}

// DuplicateCertificateError is returned when a certificate was already issued
// for the (student, course) pair.
type DuplicateCertificateError struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
}

func (e *DuplicateCertificateError) Error() string {
	return fmt.Sprintf("certificate already issued for student %s in course %s", e.StudentID, e.CourseID)
}

func (e *DuplicateCertificateError) StateConflict() {}

// CourseNotCompletedError is returned when completing a course whose required
// lessons are not all done.
type CourseNotCompletedError struct {
	EnrollmentID uuid.UUID
	Remaining    int
}

func (e *CourseNotCompletedError) Error() string {
	return fmt.Sprintf("enrollment %s has %d required lessons remaining", e.EnrollmentID, e.Remaining)
}

func (e *CourseNotCompletedError) StateConflict() {}

// UnknownLessonError is returned when a lesson is not part of the enrolled course.
type UnknownLessonError struct {
	CourseID uuid.UUID
	LessonID uuid.UUID
}

func (e *UnknownLessonError) Error() string {
	return fmt.Sprintf("lesson %s is not part of course %s", e.LessonID, e.CourseID)
}

func (e *UnknownLessonError) StateConflict() {}

// PaymentMismatchError is returned when a payment result refers to a payment
// other than the one the enrollment requested.
type PaymentMismatchError struct {
	EnrollmentID uuid.UUID
	Expected     uuid.UUID
	Got          uuid.UUID
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("enrollment %s expects payment %s, got %s", e.EnrollmentID, e.Expected, e.Got)
}

func (e *PaymentMismatchError) StateConflict() {}

// RefundExceedsPriceError is returned when a refund would exceed what the
// student paid for the enrollment.
type RefundExceedsPriceError struct {
	EnrollmentID uuid.UUID
	Requested    decimal.Decimal
	Refundable   decimal.Decimal
}

func (e *RefundExceedsPriceError) Error() string {
	return fmt.Sprintf("refund %s exceeds refundable %s for enrollment %s", e.Requested, e.Refundable, e.EnrollmentID)
}

func (e *RefundExceedsPriceError) StateConflict() {}
