// Package payment implements the Payment context's command services and its
// reactions to Student events.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/app/commands"
	"github.com/ahrav/academy/internal/app/handling"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/internal/domain/shared"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

// CardInput is the card data a ProcessPaymentCommand carries to the gateway.
type CardInput struct {
	Number      string `json:"number" validate:"required,credit_card"`
	HolderName  string `json:"holder_name" validate:"required,max=100"`
	ExpiryMonth int    `json:"expiry_month" validate:"gte=1,lte=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"gte=2000,lte=2100"`
	CVV         string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

// ProcessPaymentCommand charges a pending payment.
type ProcessPaymentCommand struct {
	PaymentID uuid.UUID `json:"payment_id" validate:"required"`
	Card      CardInput `json:"card" validate:"required"`
}

func (ProcessPaymentCommand) CommandName() string { return "process_payment" }

// RefundPaymentCommand returns part or all of a confirmed payment.
type RefundPaymentCommand struct {
	PaymentID uuid.UUID       `json:"payment_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason    string          `json:"reason" validate:"max=500"`
}

func (RefundPaymentCommand) CommandName() string { return "refund_payment" }

// Service runs Payment commands. A command persists the payment and then
// publishes what it raised; when a downstream handler fails, the payment's own
// change stays committed and is returned alongside the error.
type Service struct {
	payments  payment.Repository
	gateway   payment.Gateway
	publisher events.DomainEventPublisher

	timeProv timeutil.Provider
	logger   *logger.Logger
	tracer   trace.Tracer
}

// NewService creates a Payment service.
func NewService(
	payments payment.Repository,
	gateway payment.Gateway,
	publisher events.DomainEventPublisher,
	tp timeutil.Provider,
	log *logger.Logger,
	tracer trace.Tracer,
) *Service {
	return &Service{
		payments:  payments,
		gateway:   gateway,
		publisher: publisher,
		timeProv:  tp,
		logger:    log.With("component", "payment_service"),
		tracer:    tracer,
	}
}

// ProcessPayment sends a pending payment to the gateway. A declined charge is
// not an error: the payment comes back REJECTED. A gateway transport error
// leaves the payment PENDING and is returned; retrying is up to the caller.
func (s *Service) ProcessPayment(ctx context.Context, cmd ProcessPaymentCommand) (*payment.Payment, error) {
	var (
		p     *payment.Payment
		saved bool
	)
	err := handling.WithSpan(ctx, s.tracer, "payment_service.process_payment", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("payment_id", cmd.PaymentID.String()))
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		var err error
		if p, err = s.payments.GetByID(ctx, cmd.PaymentID); err != nil {
			return err
		}

		card := payment.CardDetails{
			Number:      cmd.Card.Number,
			HolderName:  cmd.Card.HolderName,
			ExpiryMonth: cmd.Card.ExpiryMonth,
			ExpiryYear:  cmd.Card.ExpiryYear,
			CVV:         cmd.Card.CVV,
		}
		if err := p.Process(ctx, s.gateway, card, s.timeProv.Now()); err != nil {
			s.logger.Warn(ctx, "Payment not processed", "payment_id", p.ID(), "error", err)
			return err
		}
		span.SetAttributes(attribute.String("status", p.Status().String()))

		s.logger.Info(ctx, "Payment processed",
			"payment_id", p.ID(),
			"enrollment_id", p.EnrollmentID(),
			"status", p.Status().String(),
		)
		saved, err = s.save(ctx, p)
		return err
	})
	if err != nil && !saved {
		return nil, err
	}
	return p, err
}

// RefundPayment refunds a confirmed payment directly, bypassing the
// enrollment's refund request. The enrollment still follows through the
// PaymentRefunded event.
func (s *Service) RefundPayment(ctx context.Context, cmd RefundPaymentCommand) (*payment.Payment, error) {
	var (
		p     *payment.Payment
		saved bool
	)
	err := handling.WithSpan(ctx, s.tracer, "payment_service.refund_payment", func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.String("payment_id", cmd.PaymentID.String()),
			attribute.String("amount", cmd.Amount.String()),
		)
		if err := commands.Validate(cmd); err != nil {
			return err
		}

		var err error
		if p, err = s.payments.GetByID(ctx, cmd.PaymentID); err != nil {
			return err
		}
		saved, err = s.refund(ctx, p, cmd.Amount, cmd.Reason)
		return err
	})
	if err != nil && !saved {
		return nil, err
	}
	return p, err
}

// GetPayment loads a payment.
func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*payment.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "payment_service.get_payment",
		trace.WithAttributes(attribute.String("payment_id", paymentID.String())))
	defer span.End()

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, handling.RecordErr(span, err)
	}
	return p, nil
}

// open creates the payment for an enrollment unless one is already pending or
// settled for it.
func (s *Service) open(ctx context.Context, enrollmentID, studentID uuid.UUID, amount decimal.Decimal) error {
	existing, err := s.payments.FindByEnrollmentID(ctx, enrollmentID)
	switch {
	case err == nil && existing.Status() != payment.StatusRejected:
		s.logger.Debug(ctx, "Payment already open for enrollment", "enrollment_id", enrollmentID, "payment_id", existing.ID())
		return nil
	case err != nil && !errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("find payment for enrollment %s: %w", enrollmentID, err)
	}

	p, err := payment.NewPayment(uuid.New(), enrollmentID, studentID, amount, s.timeProv.Now())
	if err != nil {
		return err
	}
	if err := s.payments.Add(ctx, p); err != nil {
		return fmt.Errorf("add payment: %w", err)
	}
	s.logger.Info(ctx, "Payment opened", "payment_id", p.ID(), "enrollment_id", enrollmentID, "amount", amount.String())
	return events.PublishAll(ctx, s.publisher, p.PullEvents())
}

// refund reports whether the refunded payment was persisted, which stays true
// when only the follow-up publish failed.
func (s *Service) refund(ctx context.Context, p *payment.Payment, amount decimal.Decimal, reason string) (bool, error) {
	if err := p.Refund(ctx, s.gateway, amount, reason, s.timeProv.Now()); err != nil {
		s.logger.Warn(ctx, "Refund not applied", "payment_id", p.ID(), "amount", amount.String(), "error", err)
		return false, err
	}
	s.logger.Info(ctx, "Payment refunded",
		"payment_id", p.ID(),
		"amount", amount.String(),
		"total_refunded", p.RefundedAmount().String(),
	)
	return s.save(ctx, p)
}

func (s *Service) save(ctx context.Context, p *payment.Payment) (bool, error) {
	if err := s.payments.Update(ctx, p); err != nil {
		return false, fmt.Errorf("update payment %s: %w", p.ID(), err)
	}
	return true, events.PublishAll(ctx, s.publisher, p.PullEvents())
}
