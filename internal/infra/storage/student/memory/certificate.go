package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
)

var _ student.CertificateRepository = (*CertificateStore)(nil)

type pairKey struct{ student, course uuid.UUID }

// CertificateStore keeps certificates with a (student, course) index that
// enforces one certificate per pair.
type CertificateStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*student.Certificate
	byPair map[pairKey]uuid.UUID
}

// NewCertificateStore creates an empty in-memory certificate store.
func NewCertificateStore() *CertificateStore {
	return &CertificateStore{
		byID:   make(map[uuid.UUID]*student.Certificate),
		byPair: make(map[pairKey]uuid.UUID),
	}
}

func (s *CertificateStore) GetByID(_ context.Context, id uuid.UUID) (*student.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, shared.NewNotFoundError("certificate", id)
	}
	return copyCertificate(c), nil
}

func (s *CertificateStore) Add(_ context.Context, c *student.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{student: c.StudentID(), course: c.CourseID()}
	if _, ok := s.byPair[key]; ok {
		return &student.DuplicateCertificateError{StudentID: c.StudentID(), CourseID: c.CourseID()}
	}
	s.byID[c.ID()] = copyCertificate(c)
	s.byPair[key] = c.ID()
	return nil
}

func (s *CertificateStore) FindByStudentCourse(_ context.Context, studentID, courseID uuid.UUID) (*student.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[pairKey{student: studentID, course: courseID}]
	if !ok {
		return nil, &shared.NotFoundError{Kind: "certificate", ID: studentID.String() + "/" + courseID.String()}
	}
	return copyCertificate(s.byID[id]), nil
}

func copyCertificate(c *student.Certificate) *student.Certificate {
	return student.ReconstructCertificate(
		c.ID(), c.StudentID(), c.CourseID(), c.EnrollmentID(), c.Number(), c.IssueDate(), c.Score(),
	)
}
