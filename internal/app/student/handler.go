package student

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/app/handling"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/internal/domain/student"
)

var _ events.EventHandler = (*EnrollmentHandler)(nil)

// EnrollmentHandler moves enrollments through their lifecycle in response to
// Payment events, activates free enrollments and issues certificates for
// completed courses.
type EnrollmentHandler struct {
	svc    *Service
	tracer trace.Tracer
}

// NewEnrollmentHandler creates the handler on top of the Student service.
func NewEnrollmentHandler(svc *Service, tracer trace.Tracer) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc, tracer: tracer}
}

func (h *EnrollmentHandler) HandlerName() string { return "student.enrollment" }

func (h *EnrollmentHandler) SupportedEvents() []events.EventType {
	return []events.EventType{
		student.EventTypeEnrollmentCreated,
		payment.EventTypePaymentInitiated,
		payment.EventTypePaymentConfirmed,
		payment.EventTypePaymentRejected,
		payment.EventTypePaymentRefunded,
		student.EventTypeCourseCompletedForStudent,
	}
}

// HandleEvent routes the event to the matching reaction.
func (h *EnrollmentHandler) HandleEvent(ctx context.Context, evt events.EventEnvelope) error {
	switch evt.Type {
	case student.EventTypeEnrollmentCreated:
		return h.HandleEnrollmentCreated(ctx, evt)
	case payment.EventTypePaymentInitiated:
		return h.HandlePaymentInitiated(ctx, evt)
	case payment.EventTypePaymentConfirmed:
		return h.HandlePaymentConfirmed(ctx, evt)
	case payment.EventTypePaymentRejected:
		return h.HandlePaymentRejected(ctx, evt)
	case payment.EventTypePaymentRefunded:
		return h.HandlePaymentRefunded(ctx, evt)
	case student.EventTypeCourseCompletedForStudent:
		return h.HandleCourseCompleted(ctx, evt)
	default:
		return fmt.Errorf("unsupported event type: %s", evt.Type)
	}
}

// HandleEnrollmentCreated activates enrollments that cost nothing. Paid
// enrollments wait for the Payment context.
func (h *EnrollmentHandler) HandleEnrollmentCreated(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "student_handler.handle_enrollment_created", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(student.EnrollmentCreatedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(attribute.String("enrollment_id", e.EnrollmentID.String()))

		if e.FinalPrice.IsPositive() {
			return nil
		}
		return h.apply(ctx, e.EnrollmentID, func(en *student.Enrollment) error {
			return en.ActivateFree(h.svc.timeProv.Now())
		}, true)
	})
}

// HandlePaymentInitiated links the opened payment and moves the enrollment
// to PENDING_PAYMENT.
func (h *EnrollmentHandler) HandlePaymentInitiated(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "student_handler.handle_payment_initiated", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(payment.PaymentInitiatedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("enrollment_id", e.EnrollmentID.String()),
			attribute.String("payment_id", e.PaymentID.String()),
		)

		return h.apply(ctx, e.EnrollmentID, func(en *student.Enrollment) error {
			return en.RequestPayment(e.PaymentID, h.svc.timeProv.Now())
		}, false)
	})
}

// HandlePaymentConfirmed activates the enrollment and opens its learning
// history. A repeat confirmation is ignored.
func (h *EnrollmentHandler) HandlePaymentConfirmed(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "student_handler.handle_payment_confirmed", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(payment.PaymentConfirmedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("enrollment_id", e.EnrollmentID.String()),
			attribute.String("transaction_id", e.TransactionID),
		)

		return h.apply(ctx, e.EnrollmentID, func(en *student.Enrollment) error {
			return en.OnPaymentConfirmed(e.PaymentID, e.TransactionID, h.svc.timeProv.Now())
		}, true)
	})
}

// HandlePaymentRejected rejects the enrollment.
func (h *EnrollmentHandler) HandlePaymentRejected(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "student_handler.handle_payment_rejected", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(payment.PaymentRejectedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(attribute.String("enrollment_id", e.EnrollmentID.String()))

		return h.apply(ctx, e.EnrollmentID, func(en *student.Enrollment) error {
			return en.OnPaymentRejected(e.Reason, h.svc.timeProv.Now())
		}, false)
	})
}

// HandlePaymentRefunded applies a confirmed refund to the enrollment.
func (h *EnrollmentHandler) HandlePaymentRefunded(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "student_handler.handle_payment_refunded", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(payment.PaymentRefundedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("enrollment_id", e.EnrollmentID.String()),
			attribute.String("amount", e.Amount.String()),
			attribute.Bool("fully_refunded", e.FullyRefunded),
		)

		return h.apply(ctx, e.EnrollmentID, func(en *student.Enrollment) error {
			return en.ApplyRefund(e.Amount, e.FullyRefunded, h.svc.timeProv.Now())
		}, false)
	})
}

// HandleCourseCompleted issues the certificate of a completed enrollment.
func (h *EnrollmentHandler) HandleCourseCompleted(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "student_handler.handle_course_completed", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(student.CourseCompletedForStudentEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(attribute.String("enrollment_id", e.EnrollmentID.String()))

		en, err := h.svc.enrollments.GetByID(ctx, e.EnrollmentID)
		if err != nil {
			return fmt.Errorf("load enrollment (enrollment_id: %s): %w", e.EnrollmentID, err)
		}
		if _, err := h.svc.issueCertificate(ctx, en); err != nil {
			return fmt.Errorf("issue certificate (enrollment_id: %s): %w", e.EnrollmentID, err)
		}
		return nil
	})
}

// apply loads the enrollment, runs fn and persists the result. When fn
// raised no events the enrollment is left alone. activates is set for
// transitions that can make the enrollment ACTIVE; its learning history is
// created before the events go out.
func (h *EnrollmentHandler) apply(
	ctx context.Context,
	enrollmentID uuid.UUID,
	fn func(*student.Enrollment) error,
	activates bool,
) error {
	en, err := h.svc.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return fmt.Errorf("load enrollment (enrollment_id: %s): %w", enrollmentID, err)
	}
	if err := fn(en); err != nil {
		return err
	}

	evts := en.PullEvents()
	if len(evts) == 0 {
		return nil
	}
	if err := h.svc.enrollments.Update(ctx, en); err != nil {
		return fmt.Errorf("update enrollment (enrollment_id: %s): %w", enrollmentID, err)
	}
	if activates && en.Status() == student.EnrollmentStatusActive {
		if err := h.svc.activate(ctx, en); err != nil {
			return fmt.Errorf("create progress (enrollment_id: %s): %w", enrollmentID, err)
		}
	}

	h.svc.logger.Info(ctx, "Enrollment updated",
		"enrollment_id", en.ID(),
		"status", en.Status().String(),
	)
	return events.PublishAll(ctx, h.svc.publisher, evts)
}
