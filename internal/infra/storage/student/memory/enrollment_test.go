package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
)

func newEnrollment(t *testing.T, studentID, courseID uuid.UUID) *student.Enrollment {
	t.Helper()
	e, err := student.NewEnrollment(uuid.New(), studentID, courseID, decimal.NewFromInt(50), shared.NoDiscount, time.Now())
	require.NoError(t, err)
	return e
}

func TestEnrollmentStore_ConcurrentAddSamePair(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewEnrollmentStore()
	studentID, courseID := uuid.New(), uuid.New()

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok, dupErr int
	)
	attempts := make([]*student.Enrollment, 10)
	for i := range attempts {
		attempts[i] = newEnrollment(t, studentID, courseID)
	}
	for _, e := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Add(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			var dup *student.DuplicateEnrollmentError
			switch {
			case err == nil:
				ok++
			case assert.ErrorAs(t, err, &dup):
				dupErr++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, dupErr)
}

func TestEnrollmentStore_ClosedEnrollmentAllowsNewOne(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewEnrollmentStore()
	studentID, courseID := uuid.New(), uuid.New()

	first := newEnrollment(t, studentID, courseID)
	require.NoError(t, s.Add(ctx, first))
	paymentID := uuid.New()
	require.NoError(t, first.RequestPayment(paymentID, time.Now()))
	require.NoError(t, first.OnPaymentRejected("declined", time.Now()))
	require.NoError(t, s.Update(ctx, first))

	byPayment, err := s.GetByPaymentID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), byPayment.ID())

	_, err = s.FindOpen(ctx, studentID, courseID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	second := newEnrollment(t, studentID, courseID)
	require.NoError(t, s.Add(ctx, second))

	open, err := s.FindOpen(ctx, studentID, courseID)
	require.NoError(t, err)
	assert.Equal(t, second.ID(), open.ID())
}

func TestCertificateStore_OnePerPair(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewCertificateStore()
	studentID, courseID := uuid.New(), uuid.New()

	first := student.ReconstructCertificate(uuid.New(), studentID, courseID, uuid.New(), "CERT-1", time.Now(), nil)
	require.NoError(t, s.Add(ctx, first))

	second := student.ReconstructCertificate(uuid.New(), studentID, courseID, uuid.New(), "CERT-2", time.Now(), nil)
	var dup *student.DuplicateCertificateError
	require.ErrorAs(t, s.Add(ctx, second), &dup)

	found, err := s.FindByStudentCourse(ctx, studentID, courseID)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), found.ID())

	_, err = s.GetByID(ctx, second.ID())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
