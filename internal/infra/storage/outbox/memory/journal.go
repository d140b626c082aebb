// Package memory provides an in-memory outbox store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/outbox"
)

var _ outbox.Store = (*JournalStore)(nil)

// JournalStore keeps journal rows in append order.
type JournalStore struct {
	mu      sync.Mutex
	rows    []outbox.Record
	seen    map[uuid.UUID]struct{}
	nextSeq int64
}

// NewJournalStore creates an empty journal.
func NewJournalStore() *JournalStore {
	return &JournalStore{seen: make(map[uuid.UUID]struct{}), nextSeq: 1}
}

func (s *JournalStore) Append(_ context.Context, r outbox.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[r.EventID]; dup {
		return nil
	}
	r.Seq = s.nextSeq
	s.nextSeq++
	s.seen[r.EventID] = struct{}{}
	s.rows = append(s.rows, r)
	return nil
}

func (s *JournalStore) UpdateOutcome(
	_ context.Context,
	eventID uuid.UUID,
	outcome eventdispatcher.DeliveryOutcome,
	failedHandler, errText string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		if s.rows[i].EventID == eventID {
			s.rows[i].Outcome = outcome
			s.rows[i].FailedHandler = failedHandler
			s.rows[i].Error = errText
			return nil
		}
	}
	return fmt.Errorf("journal row for event %s not found", eventID)
}

func (s *JournalStore) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.Record
	for _, r := range s.rows {
		if len(out) == limit {
			break
		}
		if r.Status == outbox.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *JournalStore) MarkPublished(_ context.Context, seq int64, at time.Time) error {
	return s.update(seq, func(r *outbox.Record) {
		r.Status = outbox.StatusPublished
		r.PublishedAt = &at
	})
}

func (s *JournalStore) MarkAttemptFailed(_ context.Context, seq int64) error {
	return s.update(seq, func(r *outbox.Record) { r.Attempts++ })
}

// Records returns a copy of every row in journal order.
func (s *JournalStore) Records() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Record(nil), s.rows...)
}

func (s *JournalStore) update(seq int64, fn func(*outbox.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		if s.rows[i].Seq == seq {
			fn(&s.rows[i])
			return nil
		}
	}
	return fmt.Errorf("journal row %d not found", seq)
}
