package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/infra/eventbus/kafka/tracing"
	"github.com/ahrav/academy/pkg/common/logger"
)

// Message is one integration event ready for the broker.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Publisher sends integration events to a single topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics PublisherMetrics
}

// NewPublisher wraps an existing producer. A nil metrics disables counting.
func NewPublisher(
	producer sarama.SyncProducer,
	topic string,
	log *logger.Logger,
	metrics PublisherMetrics,
	tracer trace.Tracer,
) *Publisher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   log.With("component", "kafka_publisher", "topic", topic),
		tracer:   tracer,
		metrics:  metrics,
	}
}

// Publish sends msg and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	ctx, span := tracing.StartProducerSpan(ctx, p.topic, p.tracer)
	defer span.End()
	span.SetAttributes(attribute.String("event.key", msg.Key))

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(msg.Value),
	}
	for k, v := range msg.Headers {
		kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	tracing.InjectTraceContext(ctx, kafkaMsg)

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		p.metrics.IncPublishError(ctx, p.topic)
		return fmt.Errorf("failed to send message to kafka topic %s: %w", p.topic, err)
	}
	p.metrics.IncMessagePublished(ctx, p.topic)

	p.logger.Debug(ctx, "Published message to Kafka",
		"partition", partition,
		"offset", offset,
		"key", msg.Key,
	)
	return nil
}

// Close releases the producer.
func (p *Publisher) Close() error { return p.producer.Close() }
