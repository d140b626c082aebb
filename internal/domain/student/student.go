// Package student holds the Student bounded context: students, their
// enrollments, learning progress and certificates.
package student

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

// Student is the identity-independent student record. Email uniqueness is
// owned by the identity collaborator; students are deactivated, never deleted.
type Student struct {
	id        uuid.UUID
	firstName string
	lastName  string
	email     string
	isActive  bool
	createdAt time.Time
	updatedAt time.Time

	events.Recorder
}

// RegisterStudent creates an active student.
func RegisterStudent(id uuid.UUID, firstName, lastName, email string, now time.Time) (*Student, error) {
	firstName, lastName, email = strings.TrimSpace(firstName), strings.TrimSpace(lastName), strings.TrimSpace(email)
	if firstName == "" {
		return nil, shared.NewValidationError("first_name", "is required")
	}
	if lastName == "" {
		return nil, shared.NewValidationError("last_name", "is required")
	}
	if email == "" {
		return nil, shared.NewValidationError("email", "is required")
	}

	s := &Student{
		id:        id,
		firstName: firstName,
		lastName:  lastName,
		email:     strings.ToLower(email),
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}
	s.Record(NewStudentRegisteredEvent(id, s.email, now))
	return s, nil
}

// ReconstructStudent rebuilds a Student from stored fields.
func ReconstructStudent(id uuid.UUID, firstName, lastName, email string, isActive bool, createdAt, updatedAt time.Time) *Student {
	return &Student{
		id:        id,
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		isActive:  isActive,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (s *Student) ID() uuid.UUID        { return s.id }
func (s *Student) FirstName() string    { return s.firstName }
func (s *Student) LastName() string     { return s.lastName }
func (s *Student) FullName() string     { return s.firstName + " " + s.lastName }
func (s *Student) Email() string        { return s.email }
func (s *Student) IsActive() bool       { return s.isActive }
func (s *Student) CreatedAt() time.Time { return s.createdAt }
func (s *Student) UpdatedAt() time.Time { return s.updatedAt }

// Deactivate toggles the student off. Repeated calls are no-ops.
func (s *Student) Deactivate(now time.Time) {
	if !s.isActive {
		return
	}
	s.isActive = false
	s.updatedAt = now
	s.Record(NewStudentDeactivatedEvent(s.id, now))
}

// Reactivate toggles the student back on. Repeated calls are no-ops.
func (s *Student) Reactivate(now time.Time) {
	if s.isActive {
		return
	}
	s.isActive = true
	s.updatedAt = now
	s.Record(NewStudentReactivatedEvent(s.id, now))
}
