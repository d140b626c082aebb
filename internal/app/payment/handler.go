package payment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/app/handling"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/student"
)

var _ events.EventHandler = (*EnrollmentHandler)(nil)

// EnrollmentHandler is the Payment context's side of the enrollment
// choreography: it opens payments for new paid enrollments and carries out
// refunds the Student context requests.
type EnrollmentHandler struct {
	svc    *Service
	tracer trace.Tracer
}

// NewEnrollmentHandler creates the handler on top of the Payment service.
func NewEnrollmentHandler(svc *Service, tracer trace.Tracer) *EnrollmentHandler {
	return &EnrollmentHandler{svc: svc, tracer: tracer}
}

func (h *EnrollmentHandler) HandlerName() string { return "payment.enrollment" }

func (h *EnrollmentHandler) SupportedEvents() []events.EventType {
	return []events.EventType{
		student.EventTypeEnrollmentCreated,
		student.EventTypeEnrollmentRefundRequested,
	}
}

// HandleEvent routes the event to the matching reaction.
func (h *EnrollmentHandler) HandleEvent(ctx context.Context, evt events.EventEnvelope) error {
	switch evt.Type {
	case student.EventTypeEnrollmentCreated:
		return h.HandleEnrollmentCreated(ctx, evt)
	case student.EventTypeEnrollmentRefundRequested:
		return h.HandleRefundRequested(ctx, evt)
	default:
		return fmt.Errorf("unsupported event type: %s", evt.Type)
	}
}

// HandleEnrollmentCreated opens a payment for the enrollment's final price.
// Free enrollments are activated by the Student context and skipped here.
func (h *EnrollmentHandler) HandleEnrollmentCreated(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "payment_handler.handle_enrollment_created", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(student.EnrollmentCreatedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("enrollment_id", e.EnrollmentID.String()),
			attribute.String("final_price", e.FinalPrice.String()),
		)

		if !e.FinalPrice.IsPositive() {
			span.AddEvent("free_enrollment_skipped")
			return nil
		}
		if err := h.svc.open(ctx, e.EnrollmentID, e.StudentID, e.FinalPrice); err != nil {
			return fmt.Errorf("open payment (enrollment_id: %s): %w", e.EnrollmentID, err)
		}
		return nil
	})
}

// HandleRefundRequested refunds the enrollment's payment through the gateway.
func (h *EnrollmentHandler) HandleRefundRequested(ctx context.Context, evt events.EventEnvelope) error {
	return handling.WithSpan(ctx, h.tracer, "payment_handler.handle_refund_requested", func(ctx context.Context, span trace.Span) error {
		e, ok := evt.Payload.(student.EnrollmentRefundRequestedEvent)
		if !ok {
			return handling.PayloadTypeError(span, evt.Payload)
		}
		span.SetAttributes(
			attribute.String("enrollment_id", e.EnrollmentID.String()),
			attribute.String("payment_id", e.PaymentID.String()),
			attribute.String("amount", e.Amount.String()),
		)

		p, err := h.svc.payments.GetByID(ctx, e.PaymentID)
		if err != nil {
			return fmt.Errorf("load payment (payment_id: %s): %w", e.PaymentID, err)
		}
		if _, err := h.svc.refund(ctx, p, e.Amount, e.Reason); err != nil {
			return fmt.Errorf("refund payment (payment_id: %s): %w", e.PaymentID, err)
		}
		return nil
	})
}
