// Package memory provides in-memory Payment repositories for tests and the
// single-process runtime.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/internal/domain/shared"
)

var _ payment.Repository = (*PaymentStore)(nil)

// PaymentStore keeps payment snapshots keyed by id, plus the ids opened for
// each enrollment in creation order.
type PaymentStore struct {
	mu           sync.RWMutex
	payments     map[uuid.UUID]payment.Snapshot
	byEnrollment map[uuid.UUID][]uuid.UUID
}

// NewPaymentStore creates an empty in-memory payment store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		payments:     make(map[uuid.UUID]payment.Snapshot),
		byEnrollment: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (s *PaymentStore) GetByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.payments[id]
	if !ok {
		return nil, shared.NewNotFoundError("payment", id)
	}
	return payment.ReconstructPayment(snap), nil
}

func (s *PaymentStore) Add(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := p.Snapshot()
	s.payments[snap.ID] = snap
	s.byEnrollment[snap.EnrollmentID] = append(s.byEnrollment[snap.EnrollmentID], snap.ID)
	return nil
}

func (s *PaymentStore) Update(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := p.Snapshot()
	if _, ok := s.payments[snap.ID]; !ok {
		return shared.NewNotFoundError("payment", snap.ID)
	}
	s.payments[snap.ID] = snap
	return nil
}

func (s *PaymentStore) FindByEnrollmentID(_ context.Context, enrollmentID uuid.UUID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byEnrollment[enrollmentID]
	if len(ids) == 0 {
		return nil, &shared.NotFoundError{Kind: "payment for enrollment", ID: enrollmentID.String()}
	}
	return payment.ReconstructPayment(s.payments[ids[len(ids)-1]]), nil
}
