package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/events"
)

// Event types raised by the Payment context.
const (
	EventTypePaymentInitiated events.EventType = "PaymentInitiated"
	EventTypePaymentConfirmed events.EventType = "PaymentConfirmed"
	EventTypePaymentRejected  events.EventType = "PaymentRejected"
	EventTypePaymentRefunded  events.EventType = "PaymentRefunded"
)

// PaymentInitiatedEvent signals a payment was opened for an enrollment.
type PaymentInitiatedEvent struct {
	events.Base
	PaymentID    uuid.UUID
	EnrollmentID uuid.UUID
	StudentID    uuid.UUID
	Amount       decimal.Decimal
}

// NewPaymentInitiatedEvent creates a new payment initiated event.
func NewPaymentInitiatedEvent(p *Payment, at time.Time) PaymentInitiatedEvent {
	return PaymentInitiatedEvent{
		Base:         events.NewBase(p.id.String(), at),
		PaymentID:    p.id,
		EnrollmentID: p.enrollmentID,
		StudentID:    p.studentID,
		Amount:       p.amount,
	}
}

func (e PaymentInitiatedEvent) EventType() events.EventType { return EventTypePaymentInitiated }

// PaymentConfirmedEvent signals the gateway captured the payment.
type PaymentConfirmedEvent struct {
	events.Base
	PaymentID     uuid.UUID
	EnrollmentID  uuid.UUID
	TransactionID string
	Amount        decimal.Decimal
}

// NewPaymentConfirmedEvent creates a new payment confirmed event.
func NewPaymentConfirmedEvent(p *Payment, at time.Time) PaymentConfirmedEvent {
	return PaymentConfirmedEvent{
		Base:          events.NewBase(p.id.String(), at),
		PaymentID:     p.id,
		EnrollmentID:  p.enrollmentID,
		TransactionID: p.transactionID,
		Amount:        p.amount,
	}
}

func (e PaymentConfirmedEvent) EventType() events.EventType { return EventTypePaymentConfirmed }

// PaymentRejectedEvent signals the gateway declined the payment.
type PaymentRejectedEvent struct {
	events.Base
	PaymentID    uuid.UUID
	EnrollmentID uuid.UUID
	Reason       string
}

// NewPaymentRejectedEvent creates a new payment rejected event.
func NewPaymentRejectedEvent(p *Payment, at time.Time) PaymentRejectedEvent {
	return PaymentRejectedEvent{
		Base:         events.NewBase(p.id.String(), at),
		PaymentID:    p.id,
		EnrollmentID: p.enrollmentID,
		Reason:       p.failureReason,
	}
}

func (e PaymentRejectedEvent) EventType() events.EventType { return EventTypePaymentRejected }

// PaymentRefundedEvent signals a refund was captured by the gateway.
type PaymentRefundedEvent struct {
	events.Base
	PaymentID     uuid.UUID
	EnrollmentID  uuid.UUID
	Amount        decimal.Decimal
	TotalRefunded decimal.Decimal
	FullyRefunded bool
	Reason        string
}

// NewPaymentRefundedEvent creates a new payment refunded event.
func NewPaymentRefundedEvent(p *Payment, amount decimal.Decimal, reason string, at time.Time) PaymentRefundedEvent {
	return PaymentRefundedEvent{
		Base:          events.NewBase(p.id.String(), at),
		PaymentID:     p.id,
		EnrollmentID:  p.enrollmentID,
		Amount:        amount,
		TotalRefunded: p.refundedAmount,
		FullyRefunded: p.IsFullyRefunded(),
		Reason:        reason,
	}
}

func (e PaymentRefundedEvent) EventType() events.EventType { return EventTypePaymentRefunded }
