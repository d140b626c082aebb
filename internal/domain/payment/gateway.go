package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardDetails is the card data forwarded to the gateway. It is never persisted.
type CardDetails struct {
	Number      string
	HolderName  string
	ExpiryMonth int
	ExpiryYear  int
	CVV         string
}

// ChargeRequest asks the gateway to capture a payment.
type ChargeRequest struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Card      CardDetails
}

// RefundRequest asks the gateway to return part of a captured payment.
type RefundRequest struct {
	PaymentID     uuid.UUID
	TransactionID string
	Amount        decimal.Decimal
}

// GatewayResult is the gateway's answer. A declined charge is a successful
// call with Successful false; transport failures are returned as errors.
type GatewayResult struct {
	Successful    bool
	TransactionID string
	Message       string
}

// Gateway is the external payment processor. Calls may be slow and may fail;
// nothing in this package retries them.
type Gateway interface {
	ProcessPayment(ctx context.Context, req ChargeRequest) (GatewayResult, error)
	RefundPayment(ctx context.Context, req RefundRequest) (GatewayResult, error)
}
