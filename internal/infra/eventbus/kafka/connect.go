package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/pkg/common/logger"
)

// ConnectWithRetry attempts to establish a producer connection with exponential backoff.
// It will retry failed connection attempts for up to 5 minutes, starting with 5 second intervals.
// This helps handle temporary network issues or Kafka cluster unavailability during startup.
func ConnectWithRetry(
	ctx context.Context,
	cfg *Config,
	log *logger.Logger,
	metrics PublisherMetrics,
	tracer trace.Tracer,
) (*Publisher, error) {
	var producer sarama.SyncProducer

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 5 * time.Minute
	expBackoff.InitialInterval = 5 * time.Second

	operation := func() error {
		var err error
		producer, err = NewProducer(cfg)
		if err != nil {
			log.Warn(ctx, "Failed to connect to Kafka, will retry", "brokers", cfg.Brokers, "error", err)
			return err
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka after retries: %w", err)
	}

	return NewPublisher(producer, cfg.Topic, log, metrics, tracer), nil
}
