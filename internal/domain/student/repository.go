package student

import (
	"context"

	"github.com/google/uuid"
)

// StudentRepository persists Student aggregates.
type StudentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Student, error)
	Add(ctx context.Context, s *Student) error
	Update(ctx context.Context, s *Student) error
}

// EnrollmentRepository persists Enrollment aggregates. Add must re-check at
// commit time that no other open enrollment exists for the same student and
// course, returning a DuplicateEnrollmentError when one does.
type EnrollmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	Add(ctx context.Context, e *Enrollment) error
	Update(ctx context.Context, e *Enrollment) error

	// FindOpen returns the created, pending or active enrollment for the pair,
	// or a shared.NotFoundError when none exists.
	FindOpen(ctx context.Context, studentID, courseID uuid.UUID) (*Enrollment, error)

	// GetByPaymentID returns the enrollment linked to a payment.
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Enrollment, error)
}

// ProgressRepository persists CourseProgress aggregates, one per enrollment.
type ProgressRepository interface {
	GetByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*CourseProgress, error)
	Add(ctx context.Context, p *CourseProgress) error
	Update(ctx context.Context, p *CourseProgress) error
}

// CertificateRepository persists Certificate aggregates. Add returns a
// DuplicateCertificateError when the pair already has a certificate.
type CertificateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Certificate, error)
	Add(ctx context.Context, c *Certificate) error

	// FindByStudentCourse returns the certificate for the pair, or a
	// shared.NotFoundError when none has been issued.
	FindByStudentCourse(ctx context.Context, studentID, courseID uuid.UUID) (*Certificate, error)
}
