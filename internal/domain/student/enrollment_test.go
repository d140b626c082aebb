package student

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func eventTypes(evts []events.DomainEvent) []events.EventType {
	out := make([]events.EventType, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.EventType())
	}
	return out
}

func mustDiscount(t *testing.T, rate string) shared.Discount {
	t.Helper()
	d, err := shared.NewDiscount(decimal.RequireFromString(rate))
	require.NoError(t, err)
	return d
}

// enrollmentIn builds a paid enrollment driven to the requested status.
func enrollmentIn(t *testing.T, status EnrollmentStatus) *Enrollment {
	t.Helper()

	e, err := NewEnrollment(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(100), shared.NoDiscount, testNow)
	require.NoError(t, err)
	paymentID := uuid.New()

	switch status {
	case EnrollmentStatusCreated:
	case EnrollmentStatusPendingPayment:
		require.NoError(t, e.RequestPayment(paymentID, testNow))
	case EnrollmentStatusActive:
		require.NoError(t, e.RequestPayment(paymentID, testNow))
		require.NoError(t, e.OnPaymentConfirmed(paymentID, "tx1", testNow))
	case EnrollmentStatusRejected:
		require.NoError(t, e.RequestPayment(paymentID, testNow))
		require.NoError(t, e.OnPaymentRejected("insufficient funds", testNow))
	case EnrollmentStatusCompleted:
		require.NoError(t, e.RequestPayment(paymentID, testNow))
		require.NoError(t, e.OnPaymentConfirmed(paymentID, "tx1", testNow))
		require.NoError(t, e.CompleteCourse(completedProgress(t, e), testNow, nil))
	case EnrollmentStatusRefunded:
		require.NoError(t, e.RequestPayment(paymentID, testNow))
		require.NoError(t, e.OnPaymentConfirmed(paymentID, "tx1", testNow))
		require.NoError(t, e.ApplyRefund(e.FinalPrice(), true, testNow))
	default:
		t.Fatalf("unsupported status %s", status)
	}
	e.PullEvents()
	return e
}

func completedProgress(t *testing.T, e *Enrollment) *CourseProgress {
	t.Helper()
	lesson := uuid.New()
	p := NewCourseProgress(uuid.New(), e.ID(), e.StudentID(), e.CourseID(), []uuid.UUID{lesson}, nil, testNow)
	_, err := p.CompleteLesson(lesson, testNow)
	require.NoError(t, err)
	return p
}

func TestNewEnrollment_FinalPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		price    string
		discount string
		want     string
	}{
		{name: "ten percent off 100", price: "100", discount: "0.1", want: "90"},
		{name: "no discount", price: "49.99", discount: "0", want: "49.99"},
		{name: "full discount", price: "49.99", discount: "1", want: "0"},
		{name: "rounds to cents", price: "10", discount: "0.333", want: "6.67"},
		{name: "free course", price: "0", discount: "0.5", want: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e, err := NewEnrollment(
				uuid.New(), uuid.New(), uuid.New(),
				decimal.RequireFromString(tc.price), mustDiscount(t, tc.discount), testNow,
			)
			require.NoError(t, err)
			assert.True(t, e.FinalPrice().Equal(decimal.RequireFromString(tc.want)),
				"got %s want %s", e.FinalPrice(), tc.want)
			assert.Equal(t, EnrollmentStatusCreated, e.Status())

			evts := e.PullEvents()
			require.Len(t, evts, 1)
			created, ok := evts[0].(EnrollmentCreatedEvent)
			require.True(t, ok)
			assert.True(t, created.FinalPrice.Equal(e.FinalPrice()))
		})
	}
}

func TestNewEnrollment_RejectsNegativePrice(t *testing.T) {
	t.Parallel()

	_, err := NewEnrollment(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(-5), shared.NoDiscount, testNow)
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestEnrollment_PaymentConfirmedHappyPath(t *testing.T) {
	t.Parallel()

	e := enrollmentIn(t, EnrollmentStatusCreated)
	paymentID := uuid.New()

	require.NoError(t, e.RequestPayment(paymentID, testNow))
	assert.Equal(t, EnrollmentStatusPendingPayment, e.Status())
	assert.Equal(t, paymentID, e.PaymentID())

	require.NoError(t, e.OnPaymentConfirmed(paymentID, "tx1", testNow))
	assert.Equal(t, EnrollmentStatusActive, e.Status())
	assert.Equal(t, "tx1", e.TransactionID())
	assert.Equal(t,
		[]events.EventType{EventTypePaymentRequested, EventTypeStudentEnrolled},
		eventTypes(e.PullEvents()),
	)
}

func TestEnrollment_OnPaymentConfirmedIsIdempotent(t *testing.T) {
	t.Parallel()

	e := enrollmentIn(t, EnrollmentStatusActive)
	before := e.Snapshot()

	require.NoError(t, e.OnPaymentConfirmed(e.PaymentID(), "tx1", testNow.Add(time.Hour)))
	assert.Equal(t, before, e.Snapshot())
	assert.Empty(t, e.PullEvents(), "duplicate confirmation must not raise a second StudentEnrolled")

	err := e.OnPaymentConfirmed(e.PaymentID(), "tx2", testNow)
	var transErr *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, before, e.Snapshot())
}

func TestEnrollment_PaymentResultOutsidePendingFails(t *testing.T) {
	t.Parallel()

	states := []EnrollmentStatus{
		EnrollmentStatusCreated,
		EnrollmentStatusActive,
		EnrollmentStatusCompleted,
		EnrollmentStatusRejected,
		EnrollmentStatusRefunded,
	}

	for _, status := range states {
		t.Run(status.String(), func(t *testing.T) {
			t.Parallel()

			e := enrollmentIn(t, status)
			before := e.Snapshot()

			var transErr *shared.InvalidTransitionError
			require.ErrorAs(t, e.OnPaymentConfirmed(uuid.New(), "other-tx", testNow), &transErr)
			require.ErrorAs(t, e.OnPaymentRejected("declined", testNow), &transErr)
			assert.Equal(t, status.String(), transErr.From)

			assert.Equal(t, before, e.Snapshot(), "rejected transition must leave the aggregate unchanged")
			assert.Empty(t, e.PullEvents())
		})
	}
}

func TestEnrollment_PaymentRejected(t *testing.T) {
	t.Parallel()

	e := enrollmentIn(t, EnrollmentStatusPendingPayment)
	require.NoError(t, e.OnPaymentRejected("insufficient funds", testNow))
	assert.Equal(t, EnrollmentStatusRejected, e.Status())
	assert.True(t, e.Status().IsTerminal())

	evts := e.PullEvents()
	require.Len(t, evts, 1)
	failed, ok := evts[0].(EnrollmentPaymentFailedEvent)
	require.True(t, ok)
	assert.Equal(t, "insufficient funds", failed.Reason)

	var transErr *shared.InvalidTransitionError
	require.ErrorAs(t, e.CompleteCourse(nil, testNow, nil), &transErr)
	require.ErrorAs(t, e.RequestRefund(decimal.NewFromInt(1), "", testNow), &transErr)
}

func TestEnrollment_PaymentMismatch(t *testing.T) {
	t.Parallel()

	e := enrollmentIn(t, EnrollmentStatusPendingPayment)
	var mismatch *PaymentMismatchError
	require.ErrorAs(t, e.OnPaymentConfirmed(uuid.New(), "tx1", testNow), &mismatch)
	assert.Equal(t, EnrollmentStatusPendingPayment, e.Status())
}

func TestEnrollment_FreeActivation(t *testing.T) {
	t.Parallel()

	e, err := NewEnrollment(uuid.New(), uuid.New(), uuid.New(), decimal.Zero, shared.NoDiscount, testNow)
	require.NoError(t, err)
	e.PullEvents()

	var transErr *shared.InvalidTransitionError
	require.ErrorAs(t, e.RequestPayment(uuid.New(), testNow), &transErr)

	require.NoError(t, e.ActivateFree(testNow))
	assert.Equal(t, EnrollmentStatusActive, e.Status())
	assert.Equal(t, []events.EventType{EventTypeStudentEnrolled}, eventTypes(e.PullEvents()))

	paid := enrollmentIn(t, EnrollmentStatusCreated)
	require.ErrorAs(t, paid.ActivateFree(testNow), &transErr)
}

func TestEnrollment_CompleteCourse(t *testing.T) {
	t.Parallel()

	e := enrollmentIn(t, EnrollmentStatusActive)

	lessons := []uuid.UUID{uuid.New(), uuid.New()}
	p := NewCourseProgress(uuid.New(), e.ID(), e.StudentID(), e.CourseID(), lessons, nil, testNow)
	_, err := p.CompleteLesson(lessons[0], testNow)
	require.NoError(t, err)

	var notDone *CourseNotCompletedError
	require.ErrorAs(t, e.CompleteCourse(p, testNow, nil), &notDone)
	assert.Equal(t, 1, notDone.Remaining)
	assert.Equal(t, EnrollmentStatusActive, e.Status())

	_, err = p.CompleteLesson(lessons[1], testNow)
	require.NoError(t, err)

	bad := 120.0
	var vErr *shared.ValidationError
	require.ErrorAs(t, e.CompleteCourse(p, testNow, &bad), &vErr)

	score := 92.5
	require.NoError(t, e.CompleteCourse(p, testNow, &score))
	assert.Equal(t, EnrollmentStatusCompleted, e.Status())
	require.NotNil(t, e.CompletionDate())
	assert.Equal(t, []events.EventType{EventTypeCourseCompletedForStudent}, eventTypes(e.PullEvents()))

	var transErr *shared.InvalidTransitionError
	require.ErrorAs(t, e.CompleteCourse(p, testNow, nil), &transErr)
}

func TestEnrollment_Refunds(t *testing.T) {
	t.Parallel()

	t.Run("request refund keeps status", func(t *testing.T) {
		t.Parallel()

		e := enrollmentIn(t, EnrollmentStatusCompleted)
		require.NoError(t, e.RequestRefund(decimal.NewFromInt(40), "unhappy", testNow))
		assert.Equal(t, EnrollmentStatusCompleted, e.Status())

		evts := e.PullEvents()
		require.Len(t, evts, 1)
		req, ok := evts[0].(EnrollmentRefundRequestedEvent)
		require.True(t, ok)
		assert.Equal(t, e.PaymentID(), req.PaymentID)
		assert.True(t, req.Amount.Equal(decimal.NewFromInt(40)))
	})

	t.Run("partial refund leaves completion untouched", func(t *testing.T) {
		t.Parallel()

		e := enrollmentIn(t, EnrollmentStatusCompleted)
		require.NoError(t, e.ApplyRefund(decimal.NewFromInt(40), false, testNow))
		assert.Equal(t, EnrollmentStatusCompleted, e.Status())
		assert.True(t, e.RefundedAmount().Equal(decimal.NewFromInt(40)))
		assert.True(t, e.Refundable().Equal(decimal.NewFromInt(60)))

		var exceeds *RefundExceedsPriceError
		require.ErrorAs(t, e.RequestRefund(decimal.NewFromInt(61), "", testNow), &exceeds)
	})

	t.Run("full refund is terminal", func(t *testing.T) {
		t.Parallel()

		e := enrollmentIn(t, EnrollmentStatusActive)
		require.NoError(t, e.ApplyRefund(decimal.NewFromInt(100), true, testNow))
		assert.Equal(t, EnrollmentStatusRefunded, e.Status())

		var transErr *shared.InvalidTransitionError
		require.ErrorAs(t, e.RequestRefund(decimal.NewFromInt(1), "", testNow), &transErr)
		require.ErrorAs(t, e.ApplyRefund(decimal.NewFromInt(1), false, testNow), &transErr)
	})

	t.Run("refund invalid before activation", func(t *testing.T) {
		t.Parallel()

		e := enrollmentIn(t, EnrollmentStatusPendingPayment)
		var transErr *shared.InvalidTransitionError
		require.ErrorAs(t, e.RequestRefund(decimal.NewFromInt(1), "", testNow), &transErr)
	})

	t.Run("non positive amount", func(t *testing.T) {
		t.Parallel()

		e := enrollmentIn(t, EnrollmentStatusActive)
		var vErr *shared.ValidationError
		require.ErrorAs(t, e.RequestRefund(decimal.Zero, "", testNow), &vErr)
	})

	t.Run("finer than currency precision", func(t *testing.T) {
		t.Parallel()

		e := enrollmentIn(t, EnrollmentStatusActive)
		var vErr *shared.ValidationError
		require.ErrorAs(t, e.RequestRefund(decimal.RequireFromString("0.004"), "", testNow), &vErr)
		assert.Equal(t, "amount", vErr.Field)
		assert.Empty(t, e.PullEvents())
	})
}

func TestEnrollmentStatus_Transitions(t *testing.T) {
	t.Parallel()

	all := []EnrollmentStatus{
		EnrollmentStatusCreated, EnrollmentStatusPendingPayment, EnrollmentStatusActive,
		EnrollmentStatusCompleted, EnrollmentStatusRejected, EnrollmentStatusRefunded,
	}
	valid := map[EnrollmentStatus][]EnrollmentStatus{
		EnrollmentStatusCreated:        {EnrollmentStatusPendingPayment, EnrollmentStatusActive},
		EnrollmentStatusPendingPayment: {EnrollmentStatusActive, EnrollmentStatusRejected},
		EnrollmentStatusActive:         {EnrollmentStatusCompleted, EnrollmentStatusRefunded},
		EnrollmentStatusCompleted:      {EnrollmentStatusRefunded},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, v := range valid[from] {
				if v == to {
					want = true
				}
			}
			assert.Equal(t, want, from.validateTransition(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, EnrollmentStatusPendingPayment.BlocksNewEnrollment())
	assert.False(t, EnrollmentStatusCompleted.BlocksNewEnrollment())
	assert.Equal(t, EnrollmentStatusActive, ParseEnrollmentStatus("ACTIVE"))
	assert.Equal(t, EnrollmentStatus(""), ParseEnrollmentStatus("bogus"))
}
