// Package payment holds the Payment bounded context: payment attempts, their
// gateway results and refunds.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/shared"
)

// Payment is one attempt to charge a student for an enrollment. Status moves
// one way; refundedAmount never exceeds amount.
type Payment struct {
	id             uuid.UUID
	enrollmentID   uuid.UUID
	studentID      uuid.UUID
	amount         decimal.Decimal
	status         Status
	transactionID  string
	failureReason  string
	refundedAmount decimal.Decimal
	createdAt      time.Time
	updatedAt      time.Time

	events.Recorder
}

// NewPayment opens a PENDING payment for an enrollment.
func NewPayment(id, enrollmentID, studentID uuid.UUID, amount decimal.Decimal, now time.Time) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "must be positive")
	}

	p := &Payment{
		id:             id,
		enrollmentID:   enrollmentID,
		studentID:      studentID,
		amount:         shared.RoundCurrency(amount),
		status:         StatusPending,
		refundedAmount: decimal.Zero,
		createdAt:      now,
		updatedAt:      now,
	}
	p.Record(NewPaymentInitiatedEvent(p, now))
	return p, nil
}

// Snapshot carries the persisted fields of a Payment.
type Snapshot struct {
	ID             uuid.UUID
	EnrollmentID   uuid.UUID
	StudentID      uuid.UUID
	Amount         decimal.Decimal
	Status         Status
	TransactionID  string
	FailureReason  string
	RefundedAmount decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReconstructPayment rebuilds a Payment from stored fields.
// This should only be used by repositories when loading from storage.
func ReconstructPayment(s Snapshot) *Payment {
	return &Payment{
		id:             s.ID,
		enrollmentID:   s.EnrollmentID,
		studentID:      s.StudentID,
		amount:         s.Amount,
		status:         s.Status,
		transactionID:  s.TransactionID,
		failureReason:  s.FailureReason,
		refundedAmount: s.RefundedAmount,
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
	}
}

// Snapshot exports the persisted fields.
func (p *Payment) Snapshot() Snapshot {
	return Snapshot{
		ID:             p.id,
		EnrollmentID:   p.enrollmentID,
		StudentID:      p.studentID,
		Amount:         p.amount,
		Status:         p.status,
		TransactionID:  p.transactionID,
		FailureReason:  p.failureReason,
		RefundedAmount: p.refundedAmount,
		CreatedAt:      p.createdAt,
		UpdatedAt:      p.updatedAt,
	}
}

func (p *Payment) ID() uuid.UUID                   { return p.id }
func (p *Payment) EnrollmentID() uuid.UUID         { return p.enrollmentID }
func (p *Payment) StudentID() uuid.UUID            { return p.studentID }
func (p *Payment) Amount() decimal.Decimal         { return p.amount }
func (p *Payment) Status() Status                  { return p.status }
func (p *Payment) TransactionID() string           { return p.transactionID }
func (p *Payment) FailureReason() string           { return p.failureReason }
func (p *Payment) RefundedAmount() decimal.Decimal { return p.refundedAmount }
func (p *Payment) CreatedAt() time.Time            { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time            { return p.updatedAt }

// Refundable is the part of the amount not yet refunded.
func (p *Payment) Refundable() decimal.Decimal { return p.amount.Sub(p.refundedAmount) }

// IsFullyRefunded reports whether the whole amount has been returned.
func (p *Payment) IsFullyRefunded() bool { return p.refundedAmount.GreaterThanOrEqual(p.amount) }

// Process sends the charge to the gateway. A declined charge rejects the
// payment; a transport error leaves it PENDING so the caller may try again.
// Nothing is retried here.
func (p *Payment) Process(ctx context.Context, gw Gateway, card CardDetails, now time.Time) error {
	if p.status != StatusPending {
		return &InvalidPaymentStatusError{PaymentID: p.id, Status: p.status, Operation: "process"}
	}

	res, err := gw.ProcessPayment(ctx, ChargeRequest{PaymentID: p.id, Amount: p.amount, Card: card})
	if err != nil {
		return fmt.Errorf("gateway process payment %s: %w", p.id, err)
	}

	if res.Successful {
		p.status = StatusConfirmed
		p.transactionID = res.TransactionID
		p.updatedAt = now
		p.Record(NewPaymentConfirmedEvent(p, now))
		return nil
	}

	p.status = StatusRejected
	p.failureReason = res.Message
	p.updatedAt = now
	p.Record(NewPaymentRejectedEvent(p, now))
	return nil
}

// Refund returns part or all of a confirmed payment through the gateway.
// Refunds accumulate and may never exceed the original amount. Amounts finer
// than currency precision are rejected.
func (p *Payment) Refund(ctx context.Context, gw Gateway, amount decimal.Decimal, reason string, now time.Time) error {
	if !p.status.validateTransition(StatusRefunded) || p.IsFullyRefunded() {
		return &InvalidPaymentStatusError{PaymentID: p.id, Status: p.status, Operation: "refund"}
	}
	if !amount.IsPositive() || !shared.IsCurrencyPrecise(amount) || amount.GreaterThan(p.Refundable()) {
		return &InvalidAmountError{PaymentID: p.id, Requested: amount, Available: p.Refundable()}
	}

	res, err := gw.RefundPayment(ctx, RefundRequest{PaymentID: p.id, TransactionID: p.transactionID, Amount: amount})
	if err != nil {
		return fmt.Errorf("gateway refund payment %s: %w", p.id, err)
	}
	if !res.Successful {
		return &RefundDeclinedError{PaymentID: p.id, Reason: res.Message}
	}

	p.status = StatusRefunded
	p.refundedAmount = p.refundedAmount.Add(amount)
	p.updatedAt = now
	p.Record(NewPaymentRefundedEvent(p, amount, reason, now))
	return nil
}
