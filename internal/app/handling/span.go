// Package handling carries the tracing glue shared by command services and
// event handlers.
package handling

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithSpan creates a new trace span, executes the given function, records any
// error, and ends the span.
func WithSpan(
	ctx context.Context,
	tracer trace.Tracer,
	operationName string,
	fn func(ctx context.Context, span trace.Span) error,
) error {
	ctx, span := tracer.Start(ctx, operationName)
	defer span.End()

	if err := fn(ctx, span); err != nil {
		return RecordErr(span, err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// RecordErr marks span failed when err is non-nil and returns err unchanged.
func RecordErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// PayloadTypeError standardizes error creation and recording for invalid payload types.
func PayloadTypeError(span trace.Span, payload any) error {
	span.SetAttributes(attribute.String("actual_type", fmt.Sprintf("%T", payload)))
	return fmt.Errorf("invalid event payload type: %T", payload)
}
