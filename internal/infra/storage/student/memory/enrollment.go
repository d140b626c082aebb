package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
)

var _ student.EnrollmentRepository = (*EnrollmentStore)(nil)

// EnrollmentStore keeps enrollment snapshots in a map. The open-enrollment
// uniqueness check runs under the same lock as the write.
type EnrollmentStore struct {
	mu          sync.Mutex
	enrollments map[uuid.UUID]student.EnrollmentSnapshot
}

// NewEnrollmentStore creates an empty in-memory enrollment store.
func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{enrollments: make(map[uuid.UUID]student.EnrollmentSnapshot)}
}

func (s *EnrollmentStore) GetByID(_ context.Context, id uuid.UUID) (*student.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.enrollments[id]
	if !ok {
		return nil, shared.NewNotFoundError("enrollment", id)
	}
	return student.ReconstructEnrollment(snap), nil
}

func (s *EnrollmentStore) Add(_ context.Context, e *student.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := e.Snapshot()
	if snap.Status.BlocksNewEnrollment() {
		if existing, ok := s.findOpenLocked(snap.StudentID, snap.CourseID); ok && existing.ID != snap.ID {
			return &student.DuplicateEnrollmentError{
				StudentID:    snap.StudentID,
				CourseID:     snap.CourseID,
				EnrollmentID: existing.ID,
			}
		}
	}
	s.enrollments[snap.ID] = snap
	return nil
}

func (s *EnrollmentStore) Update(_ context.Context, e *student.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := e.Snapshot()
	if _, ok := s.enrollments[snap.ID]; !ok {
		return shared.NewNotFoundError("enrollment", snap.ID)
	}
	s.enrollments[snap.ID] = snap
	return nil
}

func (s *EnrollmentStore) FindOpen(_ context.Context, studentID, courseID uuid.UUID) (*student.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.findOpenLocked(studentID, courseID)
	if !ok {
		return nil, &shared.NotFoundError{Kind: "open enrollment", ID: studentID.String() + "/" + courseID.String()}
	}
	return student.ReconstructEnrollment(snap), nil
}

func (s *EnrollmentStore) GetByPaymentID(_ context.Context, paymentID uuid.UUID) (*student.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range s.enrollments {
		if snap.PaymentID == paymentID {
			return student.ReconstructEnrollment(snap), nil
		}
	}
	return nil, shared.NewNotFoundError("enrollment for payment", paymentID)
}

func (s *EnrollmentStore) findOpenLocked(studentID, courseID uuid.UUID) (student.EnrollmentSnapshot, bool) {
	for _, snap := range s.enrollments {
		if snap.StudentID == studentID && snap.CourseID == courseID && snap.Status.BlocksNewEnrollment() {
			return snap, true
		}
	}
	return student.EnrollmentSnapshot{}, false
}
