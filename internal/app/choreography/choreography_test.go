package choreography_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/academy/internal/app/choreography"
	appcontent "github.com/ahrav/academy/internal/app/content"
	apppayment "github.com/ahrav/academy/internal/app/payment"
	appstudent "github.com/ahrav/academy/internal/app/student"
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/internal/domain/student"
	"github.com/ahrav/academy/internal/infra/catalog"
	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/internal/infra/gateway"
	"github.com/ahrav/academy/internal/infra/outbox"
	contentmem "github.com/ahrav/academy/internal/infra/storage/content/memory"
	outboxmem "github.com/ahrav/academy/internal/infra/storage/outbox/memory"
	paymentmem "github.com/ahrav/academy/internal/infra/storage/payment/memory"
	studentmem "github.com/ahrav/academy/internal/infra/storage/student/memory"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

const goodCard = "4242424242424242"

type harness struct {
	t *testing.T

	academy    *choreography.Academy
	dispatcher *eventdispatcher.Dispatcher
	courses    *contentmem.CourseStore
	payments   *paymentmem.PaymentStore
	certs      *studentmem.CertificateStore
	journal    *outboxmem.JournalStore
	clock      *timeutil.Mock
}

type harnessConfig struct {
	enrollments student.EnrollmentRepository
	metrics     eventdispatcher.Metrics
}

type harnessOption func(*harnessConfig)

func withEnrollments(r student.EnrollmentRepository) harnessOption {
	return func(c *harnessConfig) { c.enrollments = r }
}

func withMetrics(m eventdispatcher.Metrics) harnessOption {
	return func(c *harnessConfig) { c.metrics = m }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	ctx := context.Background()
	tracer := noop.NewTracerProvider().Tracer("test")
	log := logger.Noop()
	clock := timeutil.NewMock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	cfg := harnessConfig{enrollments: studentmem.NewEnrollmentStore()}
	for _, opt := range opts {
		opt(&cfg)
	}

	courses := contentmem.NewCourseStore()
	payments := paymentmem.NewPaymentStore()
	certs := studentmem.NewCertificateStore()
	journal := outboxmem.NewJournalStore()

	dispatcherOpts := []eventdispatcher.Option{eventdispatcher.WithJournal(outbox.NewJournal(journal, clock))}
	if cfg.metrics != nil {
		dispatcherOpts = append(dispatcherOpts, eventdispatcher.WithMetrics(cfg.metrics))
	}
	d := eventdispatcher.New(tracer, log, dispatcherOpts...)

	academy, err := choreography.Wire(ctx, d, choreography.Deps{
		Stores: choreography.Stores{
			Courses: courses,
			Student: appstudent.Repositories{
				Students:     studentmem.NewStudentStore(),
				Enrollments:  cfg.enrollments,
				Progress:     studentmem.NewProgressStore(),
				Certificates: certs,
			},
			Payments: payments,
		},
		Catalog: catalog.NewRepositoryCatalog(courses),
		Gateway: gateway.NewSimulated(0, log, tracer),
		Time:    clock,
		Logger:  log,
		Tracer:  tracer,
	})
	require.NoError(t, err)

	return &harness{
		t:          t,
		academy:    academy,
		dispatcher: d,
		courses:    courses,
		payments:   payments,
		certs:      certs,
		journal:    journal,
		clock:      clock,
	}
}

func (h *harness) course(price int64, required ...bool) (*content.Course, []uuid.UUID) {
	h.t.Helper()
	ctx := context.Background()

	c, err := h.academy.Content.CreateCourse(ctx, appcontent.CreateCourseCommand{
		Name:  "Event-Driven Go",
		Price: decimal.NewFromInt(price),
	})
	require.NoError(h.t, err)

	var lessons []uuid.UUID
	for i, req := range required {
		l, err := h.academy.Content.AddLesson(ctx, appcontent.AddLessonCommand{
			CourseID: c.ID(),
			Title:    "Lesson",
			Order:    i + 1,
			Required: req,
		})
		require.NoError(h.t, err)
		lessons = append(lessons, l.ID())
	}
	return c, lessons
}

func (h *harness) student() uuid.UUID {
	h.t.Helper()
	s, err := h.academy.Students.RegisterStudent(context.Background(), appstudent.RegisterStudentCommand{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     uuid.NewString()[:8] + "@example.com",
	})
	require.NoError(h.t, err)
	return s.ID()
}

func (h *harness) enroll(studentID, courseID uuid.UUID, discount string) *student.Enrollment {
	h.t.Helper()
	e, err := h.academy.Students.CreateEnrollment(context.Background(), appstudent.CreateEnrollmentCommand{
		StudentID: studentID,
		CourseID:  courseID,
		Discount:  decimal.RequireFromString(discount),
	})
	require.NoError(h.t, err)
	return e
}

func (h *harness) pay(enrollmentID uuid.UUID, card string) (*payment.Payment, error) {
	h.t.Helper()
	p, err := h.payments.FindByEnrollmentID(context.Background(), enrollmentID)
	require.NoError(h.t, err)

	return h.academy.Payments.ProcessPayment(context.Background(), apppayment.ProcessPaymentCommand{
		PaymentID: p.ID(),
		Card: apppayment.CardInput{
			Number:      card,
			HolderName:  "Ada Lovelace",
			ExpiryMonth: 12,
			ExpiryYear:  2030,
			CVV:         "123",
		},
	})
}

func (h *harness) enrollment(id uuid.UUID) *student.Enrollment {
	h.t.Helper()
	e, err := h.academy.Students.GetEnrollment(context.Background(), id)
	require.NoError(h.t, err)
	return e
}

func (h *harness) enrollmentCount(courseID uuid.UUID) int64 {
	h.t.Helper()
	c, err := h.academy.Content.GetCourse(context.Background(), courseID)
	require.NoError(h.t, err)
	return c.EnrollmentCount()
}

func TestPaidEnrollment_DiscountedAndConfirmed(t *testing.T) {
	h := newHarness(t)
	c, _ := h.course(100, true)
	studentID := h.student()

	e := h.enroll(studentID, c.ID(), "0.1")
	assert.Equal(t, student.EnrollmentStatusPendingPayment, e.Status())
	assert.True(t, decimal.NewFromInt(90).Equal(e.FinalPrice()), "final price %s", e.FinalPrice())

	p, err := h.payments.FindByEnrollmentID(context.Background(), e.ID())
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status())
	assert.True(t, decimal.NewFromInt(90).Equal(p.Amount()))
	assert.Equal(t, p.ID(), e.PaymentID())

	p, err = h.pay(e.ID(), goodCard)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusConfirmed, p.Status())
	assert.NotEmpty(t, p.TransactionID())

	e = h.enrollment(e.ID())
	assert.Equal(t, student.EnrollmentStatusActive, e.Status())
	assert.Equal(t, p.TransactionID(), e.TransactionID())
	assert.Equal(t, int64(1), h.enrollmentCount(c.ID()))

	_, err = h.academy.Students.GetProgress(context.Background(), e.ID())
	assert.NoError(t, err)
}

func TestPaidEnrollment_Rejected(t *testing.T) {
	h := newHarness(t)
	c, _ := h.course(100, true)
	studentID := h.student()

	e := h.enroll(studentID, c.ID(), "0")
	p, err := h.pay(e.ID(), gateway.DeclinedCard)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRejected, p.Status())
	assert.NotEmpty(t, p.FailureReason())

	assert.Equal(t, student.EnrollmentStatusRejected, h.enrollment(e.ID()).Status())
	assert.Equal(t, int64(0), h.enrollmentCount(c.ID()))

	_, err = h.academy.Students.GetProgress(context.Background(), e.ID())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// A rejected enrollment does not block a new attempt.
	again := h.enroll(studentID, c.ID(), "0")
	assert.NotEqual(t, e.ID(), again.ID())
}

func TestPaidEnrollment_GatewayUnavailableLeavesPending(t *testing.T) {
	h := newHarness(t)
	c, _ := h.course(50, true)
	e := h.enroll(h.student(), c.ID(), "0")

	p, err := h.pay(e.ID(), gateway.UnavailableCard)
	require.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.Nil(t, p)

	stored, err := h.payments.FindByEnrollmentID(context.Background(), e.ID())
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, stored.Status())
	assert.Equal(t, student.EnrollmentStatusPendingPayment, h.enrollment(e.ID()).Status())
}

func TestDuplicateEnrollment(t *testing.T) {
	h := newHarness(t)
	c, _ := h.course(100, true)
	studentID := h.student()
	first := h.enroll(studentID, c.ID(), "0")

	_, err := h.academy.Students.CreateEnrollment(context.Background(), appstudent.CreateEnrollmentCommand{
		StudentID: studentID,
		CourseID:  c.ID(),
	})
	var dup *student.DuplicateEnrollmentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID(), dup.EnrollmentID)
	assert.True(t, shared.IsStateConflict(err))
}

func TestCreateEnrollment_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.course(100, true)
	studentID := h.student()

	t.Run("discount out of range", func(t *testing.T) {
		_, err := h.academy.Students.CreateEnrollment(ctx, appstudent.CreateEnrollmentCommand{
			StudentID: studentID,
			CourseID:  c.ID(),
			Discount:  decimal.RequireFromString("1.5"),
		})
		var vErr *shared.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "CreateEnrollmentCommand.discount", vErr.Field)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := h.academy.Students.CreateEnrollment(ctx, appstudent.CreateEnrollmentCommand{
			StudentID: studentID,
			CourseID:  uuid.New(),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("inactive course", func(t *testing.T) {
		inactive, _ := h.course(10, true)
		require.NoError(t, h.academy.Content.DeactivateCourse(ctx, inactive.ID()))

		_, err := h.academy.Students.CreateEnrollment(ctx, appstudent.CreateEnrollmentCommand{
			StudentID: studentID,
			CourseID:  inactive.ID(),
		})
		var inactiveErr *content.CourseInactiveError
		assert.ErrorAs(t, err, &inactiveErr)
	})

	t.Run("inactive student", func(t *testing.T) {
		other := h.student()
		require.NoError(t, h.academy.Students.DeactivateStudent(ctx, other))

		_, err := h.academy.Students.CreateEnrollment(ctx, appstudent.CreateEnrollmentCommand{
			StudentID: other,
			CourseID:  c.ID(),
		})
		var vErr *shared.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "student_id", vErr.Field)
	})
}

func TestFreeEnrollment_ActivatesWithoutPayment(t *testing.T) {
	h := newHarness(t)
	c, _ := h.course(0, true)

	e := h.enroll(h.student(), c.ID(), "0")
	assert.Equal(t, student.EnrollmentStatusActive, e.Status())
	assert.Equal(t, int64(1), h.enrollmentCount(c.ID()))

	_, err := h.payments.FindByEnrollmentID(context.Background(), e.ID())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLearningPath_CompletesAndIssuesOneCertificate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, lessons := h.course(100, true, false, true)
	studentID := h.student()

	e := h.enroll(studentID, c.ID(), "0")
	_, err := h.pay(e.ID(), goodCard)
	require.NoError(t, err)

	complete := func(lessonID uuid.UUID) *student.CourseProgress {
		p, err := h.academy.Students.CompleteLessonForStudent(ctx, appstudent.CompleteLessonCommand{
			EnrollmentID: e.ID(),
			LessonID:     lessonID,
		})
		require.NoError(t, err)
		return p
	}

	p := complete(lessons[0])
	assert.False(t, p.IsCompleted())
	assert.Equal(t, 1, p.RemainingRequired())

	// Repeats change nothing.
	complete(lessons[0])

	_, err = h.academy.Students.CompleteCourseForStudent(ctx, appstudent.CompleteCourseCommand{EnrollmentID: e.ID()})
	var notDone *student.CourseNotCompletedError
	require.ErrorAs(t, err, &notDone)

	p = complete(lessons[2])
	assert.True(t, p.IsCompleted())

	_, err = h.academy.Students.CompleteLessonForStudent(ctx, appstudent.CompleteLessonCommand{
		EnrollmentID: e.ID(),
		LessonID:     uuid.New(),
	})
	var unknown *student.UnknownLessonError
	require.ErrorAs(t, err, &unknown)

	score := 92.5
	e, err = h.academy.Students.CompleteCourseForStudent(ctx, appstudent.CompleteCourseCommand{
		EnrollmentID: e.ID(),
		Score:        &score,
	})
	require.NoError(t, err)
	assert.Equal(t, student.EnrollmentStatusCompleted, e.Status())
	require.NotNil(t, e.CompletionDate())

	cert, err := h.certs.FindByStudentCourse(ctx, studentID, c.ID())
	require.NoError(t, err)
	assert.Equal(t, e.ID(), cert.EnrollmentID())
	assert.Regexp(t, `^CERT-20250301-[0-9a-f]{8}$`, cert.Number())
	require.NotNil(t, cert.Score())
	assert.InDelta(t, score, *cert.Score(), 0.001)

	_, err = h.academy.Students.GenerateCertificate(ctx, appstudent.GenerateCertificateCommand{EnrollmentID: e.ID()})
	var dupCert *student.DuplicateCertificateError
	require.ErrorAs(t, err, &dupCert)

	course, err := h.academy.Content.GetCourse(ctx, c.ID())
	require.NoError(t, err)
	l, ok := course.Lesson(lessons[0])
	require.True(t, ok)
	assert.Equal(t, int64(1), l.CompletionCount())
}

func TestCompleteLesson_RequiresActiveEnrollment(t *testing.T) {
	h := newHarness(t)
	c, lessons := h.course(100, true)
	e := h.enroll(h.student(), c.ID(), "0")

	_, err := h.academy.Students.CompleteLessonForStudent(context.Background(), appstudent.CompleteLessonCommand{
		EnrollmentID: e.ID(),
		LessonID:     lessons[0],
	})
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, student.EnrollmentStatusPendingPayment.String(), transition.From)
}

func TestRefunds_PartialThenFull(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.course(100, true)

	e := h.enroll(h.student(), c.ID(), "0.1")
	p, err := h.pay(e.ID(), goodCard)
	require.NoError(t, err)

	e, err = h.academy.Students.RefundEnrollment(ctx, appstudent.RefundEnrollmentCommand{
		EnrollmentID: e.ID(),
		Amount:       decimal.NewFromInt(30),
		Reason:       "changed schedule",
	})
	require.NoError(t, err)
	assert.Equal(t, student.EnrollmentStatusActive, e.Status())
	assert.True(t, decimal.NewFromInt(30).Equal(e.RefundedAmount()))

	_, err = h.academy.Students.RefundEnrollment(ctx, appstudent.RefundEnrollmentCommand{
		EnrollmentID: e.ID(),
		Amount:       decimal.NewFromInt(61),
	})
	var exceeds *student.RefundExceedsPriceError
	require.ErrorAs(t, err, &exceeds)

	// The rest goes through the Payment context directly.
	p, err = h.academy.Payments.RefundPayment(ctx, apppayment.RefundPaymentCommand{
		PaymentID: p.ID(),
		Amount:    decimal.NewFromInt(60),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, p.Status())
	assert.True(t, p.IsFullyRefunded())

	e = h.enrollment(e.ID())
	assert.Equal(t, student.EnrollmentStatusRefunded, e.Status())
	assert.True(t, decimal.NewFromInt(90).Equal(e.RefundedAmount()))

	// A refunded enrollment frees the pair.
	next, err := h.academy.Students.CreateEnrollment(ctx, appstudent.CreateEnrollmentCommand{
		StudentID: e.StudentID(),
		CourseID:  c.ID(),
	})
	require.NoError(t, err)
	assert.Equal(t, student.EnrollmentStatusPendingPayment, next.Status())
}

func TestPartialFailure_SurfacesChoreographyError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.course(100, true)
	e := h.enroll(h.student(), c.ID(), "0")

	require.NoError(t, h.dispatcher.RegisterHandler(ctx, student.EventTypeStudentEnrolled, "test.mailer",
		func(context.Context, events.EventEnvelope) error { return errors.New("smtp down") }))

	p, err := h.pay(e.ID(), goodCard)
	require.Error(t, err)

	var chErr *eventdispatcher.ChoreographyError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, student.EventTypeStudentEnrolled, chErr.EventType)
	assert.Equal(t, "test.mailer", chErr.Handler)
	assert.True(t, chErr.PartiallyApplied())

	// What was committed before the failure stays committed.
	require.NotNil(t, p)
	assert.Equal(t, payment.StatusConfirmed, p.Status())
	assert.Equal(t, student.EnrollmentStatusActive, h.enrollment(e.ID()).Status())
	assert.Equal(t, int64(1), h.enrollmentCount(c.ID()))

	failed := map[events.EventType]string{}
	for _, r := range h.journal.Records() {
		if r.Failed() {
			failed[r.EventType] = r.FailedHandler
		}
	}
	assert.Equal(t, "test.mailer", failed[student.EventTypeStudentEnrolled])
	assert.Equal(t, "student.enrollment", failed[payment.EventTypePaymentConfirmed])
}

// activationFailingStore refuses to persist an enrollment once it turns ACTIVE.
type activationFailingStore struct {
	*studentmem.EnrollmentStore
}

func (s activationFailingStore) Update(ctx context.Context, e *student.Enrollment) error {
	if e.Status() == student.EnrollmentStatusActive {
		return errors.New("enrollment store unavailable")
	}
	return s.EnrollmentStore.Update(ctx, e)
}

type dispatchCounter struct {
	failures int
	partial  int
}

func (*dispatchCounter) IncEventsDispatched(context.Context, events.EventType) {}

func (c *dispatchCounter) IncHandlerFailures(context.Context, events.EventType, string) {
	c.failures++
}

func (c *dispatchCounter) IncPartialFailures(context.Context, events.EventType) { c.partial++ }

func TestPartialFailure_FirstHandlerFailsAfterPaymentCaptured(t *testing.T) {
	metrics := new(dispatchCounter)
	h := newHarness(t,
		withEnrollments(activationFailingStore{EnrollmentStore: studentmem.NewEnrollmentStore()}),
		withMetrics(metrics))
	c, _ := h.course(100, true)
	e := h.enroll(h.student(), c.ID(), "0")

	p, err := h.pay(e.ID(), goodCard)
	require.Error(t, err)

	var chErr *eventdispatcher.ChoreographyError
	require.ErrorAs(t, err, &chErr)
	assert.Equal(t, payment.EventTypePaymentConfirmed, chErr.EventType)
	assert.Equal(t, "student.enrollment", chErr.Handler)
	assert.Equal(t, 0, chErr.Depth)
	assert.Empty(t, chErr.Applied)
	assert.True(t, chErr.PartiallyApplied(), "the captured payment is already committed")
	assert.Equal(t, 1, metrics.failures)
	assert.Equal(t, 1, metrics.partial)

	require.NotNil(t, p)
	assert.Equal(t, payment.StatusConfirmed, p.Status())
	assert.Equal(t, student.EnrollmentStatusPendingPayment, h.enrollment(e.ID()).Status())
	assert.Zero(t, h.enrollmentCount(c.ID()))
}

func TestJournal_CausesPrecedeEffects(t *testing.T) {
	h := newHarness(t)
	c, _ := h.course(100, true)
	e := h.enroll(h.student(), c.ID(), "0")

	var chain []outbox.Record
	for _, r := range h.journal.Records() {
		if r.AggregateID == e.ID().String() || r.EventType == payment.EventTypePaymentInitiated {
			chain = append(chain, r)
		}
	}
	require.Len(t, chain, 3)
	assert.Equal(t, student.EventTypeEnrollmentCreated, chain[0].EventType)
	assert.Equal(t, payment.EventTypePaymentInitiated, chain[1].EventType)
	assert.Equal(t, student.EventTypePaymentRequested, chain[2].EventType)
	for i, r := range chain {
		assert.Equal(t, i, r.Depth)
		assert.Equal(t, eventdispatcher.OutcomeHandled, r.Outcome)
	}
	assert.Less(t, chain[0].Seq, chain[1].Seq)
	assert.Less(t, chain[1].Seq, chain[2].Seq)
}

func TestWire_OutlineInvalidatorRunsFirst(t *testing.T) {
	ctx := context.Background()
	tracer := noop.NewTracerProvider().Tracer("test")
	d := eventdispatcher.New(tracer, logger.Noop())

	var calls []string
	inv := &recordingHandler{name: "catalog.invalidate_outline", calls: &calls}
	_, err := choreography.Wire(ctx, d, choreography.Deps{
		Stores: choreography.Stores{
			Courses: contentmem.NewCourseStore(),
			Student: appstudent.Repositories{
				Students:     studentmem.NewStudentStore(),
				Enrollments:  studentmem.NewEnrollmentStore(),
				Progress:     studentmem.NewProgressStore(),
				Certificates: studentmem.NewCertificateStore(),
			},
			Payments: paymentmem.NewPaymentStore(),
		},
		Catalog:            catalog.NewRepositoryCatalog(contentmem.NewCourseStore()),
		Gateway:            gateway.NewSimulated(0, logger.Noop(), tracer),
		OutlineInvalidator: inv,
		Logger:             logger.Noop(),
		Tracer:             tracer,
	})
	require.NoError(t, err)

	require.NoError(t, d.RegisterHandler(ctx, content.EventTypeCourseDeactivated, "test.after",
		func(context.Context, events.EventEnvelope) error {
			calls = append(calls, "test.after")
			return nil
		}))
	require.NoError(t, d.PublishDomainEvent(ctx, content.NewCourseDeactivatedEvent(uuid.New(), time.Now())))
	assert.Equal(t, []string{"catalog.invalidate_outline", "test.after"}, calls)

	err = d.Register(ctx, inv)
	var dup *eventdispatcher.HandlerAlreadyRegisteredError
	assert.ErrorAs(t, err, &dup)
}

type recordingHandler struct {
	name  string
	calls *[]string
}

func (h *recordingHandler) HandlerName() string { return h.name }

func (h *recordingHandler) SupportedEvents() []events.EventType {
	return []events.EventType{content.EventTypeCourseDeactivated}
}

func (h *recordingHandler) HandleEvent(context.Context, events.EventEnvelope) error {
	*h.calls = append(*h.calls, h.name)
	return nil
}
