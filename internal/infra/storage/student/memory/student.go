// Package memory provides in-memory Student context stores for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
)

var _ student.StudentRepository = (*StudentStore)(nil)

// StudentStore keeps students in a map.
type StudentStore struct {
	mu       sync.Mutex
	students map[uuid.UUID]*student.Student
}

// NewStudentStore creates an empty in-memory student store.
func NewStudentStore() *StudentStore {
	return &StudentStore{students: make(map[uuid.UUID]*student.Student)}
}

func (s *StudentStore) GetByID(_ context.Context, id uuid.UUID) (*student.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[id]
	if !ok {
		return nil, shared.NewNotFoundError("student", id)
	}
	return copyStudent(st), nil
}

func (s *StudentStore) Add(_ context.Context, st *student.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.students[st.ID()] = copyStudent(st)
	return nil
}

func (s *StudentStore) Update(_ context.Context, st *student.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[st.ID()]; !ok {
		return shared.NewNotFoundError("student", st.ID())
	}
	s.students[st.ID()] = copyStudent(st)
	return nil
}

func copyStudent(st *student.Student) *student.Student {
	return student.ReconstructStudent(
		st.ID(), st.FirstName(), st.LastName(), st.Email(), st.IsActive(), st.CreatedAt(), st.UpdatedAt(),
	)
}
