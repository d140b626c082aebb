package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
)

var _ student.ProgressRepository = (*ProgressStore)(nil)

// ProgressStore keeps course progress snapshots keyed by enrollment.
type ProgressStore struct {
	mu       sync.Mutex
	progress map[uuid.UUID]student.CourseProgressSnapshot
}

// NewProgressStore creates an empty in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{progress: make(map[uuid.UUID]student.CourseProgressSnapshot)}
}

func (s *ProgressStore) GetByEnrollmentID(_ context.Context, enrollmentID uuid.UUID) (*student.CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.progress[enrollmentID]
	if !ok {
		return nil, shared.NewNotFoundError("course progress", enrollmentID)
	}
	return student.ReconstructCourseProgress(snap), nil
}

func (s *ProgressStore) Add(_ context.Context, p *student.CourseProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.progress[p.EnrollmentID()]; ok {
		return &shared.ValidationError{Field: "enrollment_id", Reason: "progress already exists"}
	}
	s.progress[p.EnrollmentID()] = p.Snapshot()
	return nil
}

func (s *ProgressStore) Update(_ context.Context, p *student.CourseProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.progress[p.EnrollmentID()]; !ok {
		return shared.NewNotFoundError("course progress", p.EnrollmentID())
	}
	s.progress[p.EnrollmentID()] = p.Snapshot()
	return nil
}
