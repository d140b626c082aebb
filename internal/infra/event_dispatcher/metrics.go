package eventdispatcher

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ahrav/academy/internal/domain/events"
)

// Metrics records choreography outcomes.
type Metrics interface {
	IncEventsDispatched(ctx context.Context, eventType events.EventType)
	IncHandlerFailures(ctx context.Context, eventType events.EventType, handler string)
	IncPartialFailures(ctx context.Context, eventType events.EventType)
}

type dispatcherMetrics struct {
	eventsDispatched metric.Int64Counter
	handlerFailures  metric.Int64Counter
	partialFailures  metric.Int64Counter
}

const namespace = "choreography"

// NewMetrics creates the dispatcher's otel instruments.
func NewMetrics(mp metric.MeterProvider) (*dispatcherMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(dispatcherMetrics)
	var err error

	if m.eventsDispatched, err = meter.Int64Counter(
		"events_dispatched_total",
		metric.WithDescription("Total number of domain events dispatched to handlers"),
	); err != nil {
		return nil, err
	}

	if m.handlerFailures, err = meter.Int64Counter(
		"handler_failures_total",
		metric.WithDescription("Total number of event handler invocations that returned an error"),
	); err != nil {
		return nil, err
	}

	if m.partialFailures, err = meter.Int64Counter(
		"partial_failures_total",
		metric.WithDescription("Total number of choreography chains that failed after other contexts committed"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *dispatcherMetrics) IncEventsDispatched(ctx context.Context, eventType events.EventType) {
	m.eventsDispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(eventType))))
}

func (m *dispatcherMetrics) IncHandlerFailures(ctx context.Context, eventType events.EventType, handler string) {
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", string(eventType)),
		attribute.String("handler", handler),
	))
}

func (m *dispatcherMetrics) IncPartialFailures(ctx context.Context, eventType events.EventType) {
	m.partialFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", string(eventType))))
}

type noopMetrics struct{}

func (noopMetrics) IncEventsDispatched(context.Context, events.EventType)        {}
func (noopMetrics) IncHandlerFailures(context.Context, events.EventType, string) {}
func (noopMetrics) IncPartialFailures(context.Context, events.EventType)         {}
