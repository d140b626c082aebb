package kafka

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PublisherMetrics tracks successful and failed publishes.
type PublisherMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
}

type publisherMetrics struct {
	published     metric.Int64Counter
	publishErrors metric.Int64Counter
}

// NewMetrics creates the publisher's otel instruments.
func NewMetrics(mp metric.MeterProvider) (*publisherMetrics, error) {
	meter := mp.Meter("kafka", metric.WithInstrumentationVersion("v0.1.0"))

	m := new(publisherMetrics)
	var err error
	if m.published, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of integration events acknowledged by Kafka"),
	); err != nil {
		return nil, err
	}
	if m.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of integration events Kafka failed to accept"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *publisherMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.published.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *publisherMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

type noopMetrics struct{}

func (noopMetrics) IncMessagePublished(context.Context, string) {}
func (noopMetrics) IncPublishError(context.Context, string)     {}
