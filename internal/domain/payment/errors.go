package payment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvalidPaymentStatusError is returned when an operation is not allowed in
// the payment's current status.
type InvalidPaymentStatusError struct {
	PaymentID uuid.UUID
	Status    Status
	Operation string
}

func (e *InvalidPaymentStatusError) Error() string {
	return fmt.Sprintf("cannot %s payment %s in status %s", e.Operation, e.PaymentID, e.Status)
}

func (e *InvalidPaymentStatusError) StateConflict() {}

// InvalidAmountError is returned when a refund amount is not positive, is finer
// than currency precision, or exceeds what remains to be refunded.
type InvalidAmountError struct {
	PaymentID uuid.UUID
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid refund amount %s for payment %s: %s available", e.Requested, e.PaymentID, e.Available)
}

func (e *InvalidAmountError) StateConflict() {}

// RefundDeclinedError is returned when the gateway refuses a refund. The
// payment is left unchanged.
type RefundDeclinedError struct {
	PaymentID uuid.UUID
	Reason    string
}

func (e *RefundDeclinedError) Error() string {
	return fmt.Sprintf("refund for payment %s declined: %s", e.PaymentID, e.Reason)
}

func (e *RefundDeclinedError) StateConflict() {}
