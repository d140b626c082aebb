package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists Payment aggregates for the Payment context.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Add(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error

	// FindByEnrollmentID returns the most recent payment opened for an enrollment.
	FindByEnrollmentID(ctx context.Context, enrollmentID uuid.UUID) (*Payment, error)
}
