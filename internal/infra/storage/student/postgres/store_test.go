package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/internal/infra/storage"
)

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func setupStudentTest(t *testing.T) (context.Context, *pgxpool.Pool, func()) {
	t.Helper()
	db, cleanup := storage.SetupTestContainer(t)
	return context.Background(), db, cleanup
}

func createTestStudent(t *testing.T, ctx context.Context, db *pgxpool.Pool) *student.Student {
	t.Helper()
	s, err := student.RegisterStudent(uuid.New(), "Grace", "Hopper", "grace@example.com", now())
	require.NoError(t, err)
	require.NoError(t, NewStudentStore(db, storage.NoOpTracer()).Add(ctx, s))
	return s
}

func createTestEnrollment(t *testing.T, studentID, courseID uuid.UUID) *student.Enrollment {
	t.Helper()
	d, err := shared.NewDiscount(decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	e, err := student.NewEnrollment(uuid.New(), studentID, courseID, decimal.NewFromInt(100), d, now())
	require.NoError(t, err)
	return e
}

func TestStudentStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx, db, cleanup := setupStudentTest(t)
	defer cleanup()

	store := NewStudentStore(db, storage.NoOpTracer())
	s := createTestStudent(t, ctx, db)

	s.Deactivate(now())
	require.NoError(t, store.Update(ctx, s))

	loaded, err := store.GetByID(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.Email(), loaded.Email())
	assert.False(t, loaded.IsActive())

	_, err = store.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnrollmentStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx, db, cleanup := setupStudentTest(t)
	defer cleanup()

	store := NewEnrollmentStore(db, storage.NoOpTracer())
	s := createTestStudent(t, ctx, db)
	e := createTestEnrollment(t, s.ID(), uuid.New())
	require.NoError(t, store.Add(ctx, e))

	loaded, err := store.GetByID(ctx, e.ID())
	require.NoError(t, err)
	assert.Equal(t, student.EnrollmentStatusCreated, loaded.Status())
	assert.True(t, loaded.FinalPrice().Equal(decimal.NewFromInt(90)))
	assert.True(t, loaded.Discount().Rate().Equal(decimal.RequireFromString("0.1")))
	assert.Equal(t, uuid.Nil, loaded.PaymentID())
	assert.Nil(t, loaded.CompletionDate())

	paymentID := uuid.New()
	require.NoError(t, e.RequestPayment(paymentID, now()))
	require.NoError(t, e.OnPaymentConfirmed(paymentID, "tx1", now()))
	require.NoError(t, store.Update(ctx, e))

	byPayment, err := store.GetByPaymentID(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, student.EnrollmentStatusActive, byPayment.Status())
	assert.Equal(t, "tx1", byPayment.TransactionID())

	open, err := store.FindOpen(ctx, s.ID(), e.CourseID())
	require.NoError(t, err)
	assert.Equal(t, e.ID(), open.ID())
}

func TestEnrollmentStore_OpenPairUniqueAtCommit(t *testing.T) {
	t.Parallel()
	ctx, db, cleanup := setupStudentTest(t)
	defer cleanup()

	store := NewEnrollmentStore(db, storage.NoOpTracer())
	s := createTestStudent(t, ctx, db)
	courseID := uuid.New()

	attempts := make([]*student.Enrollment, 5)
	for i := range attempts {
		attempts[i] = createTestEnrollment(t, s.ID(), courseID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for _, e := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Add(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			var dup *student.DuplicateEnrollmentError
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorAs(t, err, &dup):
				dupes++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, dupes)
}

func TestEnrollmentStore_RejectedFreesThePair(t *testing.T) {
	t.Parallel()
	ctx, db, cleanup := setupStudentTest(t)
	defer cleanup()

	store := NewEnrollmentStore(db, storage.NoOpTracer())
	s := createTestStudent(t, ctx, db)
	courseID := uuid.New()

	first := createTestEnrollment(t, s.ID(), courseID)
	require.NoError(t, store.Add(ctx, first))
	require.NoError(t, first.RequestPayment(uuid.New(), now()))
	require.NoError(t, first.OnPaymentRejected("declined", now()))
	require.NoError(t, store.Update(ctx, first))

	_, err := store.FindOpen(ctx, s.ID(), courseID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.NoError(t, store.Add(ctx, createTestEnrollment(t, s.ID(), courseID)))
}

func TestProgressStore_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx, db, cleanup := setupStudentTest(t)
	defer cleanup()

	s := createTestStudent(t, ctx, db)
	e := createTestEnrollment(t, s.ID(), uuid.New())
	require.NoError(t, NewEnrollmentStore(db, storage.NoOpTracer()).Add(ctx, e))

	store := NewProgressStore(db, storage.NoOpTracer())
	lessons := []uuid.UUID{uuid.New(), uuid.New()}
	p := student.NewCourseProgress(uuid.New(), e.ID(), s.ID(), e.CourseID(), lessons, lessons[:1], now())
	require.NoError(t, store.Add(ctx, p))

	_, err := p.CompleteLesson(lessons[1], now())
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, p))
	_, err = p.CompleteLesson(lessons[0], now())
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, p))

	loaded, err := store.GetByEnrollmentID(ctx, e.ID())
	require.NoError(t, err)
	assert.True(t, loaded.IsCompleted())
	require.NotNil(t, loaded.CompletedAt())
	assert.Len(t, loaded.CompletedLessons(), 2)
	assert.Equal(t, 0, loaded.RemainingRequired())

	_, err = store.GetByEnrollmentID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCertificateStore_OnePerPair(t *testing.T) {
	t.Parallel()
	ctx, db, cleanup := setupStudentTest(t)
	defer cleanup()

	s := createTestStudent(t, ctx, db)
	e := createTestEnrollment(t, s.ID(), uuid.New())
	require.NoError(t, NewEnrollmentStore(db, storage.NoOpTracer()).Add(ctx, e))

	store := NewCertificateStore(db, storage.NoOpTracer())
	score := 88.0
	first := student.ReconstructCertificate(uuid.New(), s.ID(), e.CourseID(), e.ID(), "CERT-A", now(), &score)
	require.NoError(t, store.Add(ctx, first))

	second := student.ReconstructCertificate(uuid.New(), s.ID(), e.CourseID(), e.ID(), "CERT-B", now(), nil)
	var dup *student.DuplicateCertificateError
	require.ErrorAs(t, store.Add(ctx, second), &dup)

	found, err := store.FindByStudentCourse(ctx, s.ID(), e.CourseID())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), found.ID())
	require.NotNil(t, found.Score())
	assert.InDelta(t, 88.0, *found.Score(), 0.0001)
}
