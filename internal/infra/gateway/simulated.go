// Package gateway provides a payment gateway stand-in for development and tests.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/pkg/common/logger"
)

// Well-known test cards. Any other number is approved.
const (
	DeclinedCard    = "4000000000000002"
	UnavailableCard = "4000000000000119"
)

// ErrUnavailable is the transport failure returned for UnavailableCard.
var ErrUnavailable = errors.New("payment gateway unavailable")

var _ payment.Gateway = (*Simulated)(nil)

// Simulated approves every charge except the well-known test cards, and every
// refund of a charge transaction it issued. Charge ids have the form
// sim_<uuid> and are recognised by shape, so refunds of charges made before a
// restart still succeed. An optional latency makes calls block until it
// elapses or the context ends.
type Simulated struct {
	latency time.Duration

	logger *logger.Logger
	tracer trace.Tracer
}

// NewSimulated creates a simulated gateway.
func NewSimulated(latency time.Duration, log *logger.Logger, tracer trace.Tracer) *Simulated {
	return &Simulated{
		latency: latency,
		logger:  log.With("component", "simulated_gateway"),
		tracer:  tracer,
	}
}

func (g *Simulated) ProcessPayment(ctx context.Context, req payment.ChargeRequest) (payment.GatewayResult, error) {
	ctx, span := g.tracer.Start(ctx, "simulated_gateway.process_payment",
		trace.WithAttributes(
			attribute.String("payment_id", req.PaymentID.String()),
			attribute.String("amount", req.Amount.String()),
		))
	defer span.End()

	if err := g.wait(ctx); err != nil {
		span.RecordError(err)
		return payment.GatewayResult{}, err
	}

	switch normalize(req.Card.Number) {
	case UnavailableCard:
		span.RecordError(ErrUnavailable)
		return payment.GatewayResult{}, ErrUnavailable
	case DeclinedCard:
		g.logger.Info(ctx, "Charge declined", "payment_id", req.PaymentID)
		return payment.GatewayResult{Successful: false, Message: "card declined"}, nil
	}

	txID := chargePrefix + uuid.NewString()

	g.logger.Info(ctx, "Charge approved", "payment_id", req.PaymentID, "transaction_id", txID)
	return payment.GatewayResult{Successful: true, TransactionID: txID}, nil
}

func (g *Simulated) RefundPayment(ctx context.Context, req payment.RefundRequest) (payment.GatewayResult, error) {
	ctx, span := g.tracer.Start(ctx, "simulated_gateway.refund_payment",
		trace.WithAttributes(
			attribute.String("payment_id", req.PaymentID.String()),
			attribute.String("transaction_id", req.TransactionID),
			attribute.String("amount", req.Amount.String()),
		))
	defer span.End()

	if err := g.wait(ctx); err != nil {
		span.RecordError(err)
		return payment.GatewayResult{}, err
	}

	if !issuedCharge(req.TransactionID) {
		return payment.GatewayResult{
			Successful: false,
			Message:    fmt.Sprintf("unknown transaction %q", req.TransactionID),
		}, nil
	}

	return payment.GatewayResult{Successful: true, TransactionID: "sim_refund_" + uuid.NewString()}, nil
}

const chargePrefix = "sim_"

// issuedCharge reports whether txID has the shape of a charge id this gateway
// hands out. Refund ids (sim_refund_<uuid>) do not qualify.
func issuedCharge(txID string) bool {
	rest, ok := strings.CutPrefix(txID, chargePrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

func (g *Simulated) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func normalize(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}
