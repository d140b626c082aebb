// Package kafka publishes journaled domain events to Kafka as integration
// events for consumers outside the process.
package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
)

// Config contains settings for connecting to Kafka and routing integration events.
type Config struct {
	// Brokers is a list of Kafka broker addresses to connect to.
	Brokers []string
	// Topic receives every integration event.
	Topic string
	// ClientID uniquely identifies this client to the Kafka cluster.
	ClientID string
}

// NewProducer creates a synchronous producer that waits for every in-sync
// replica and hashes keys to partitions, so events for one aggregate stay ordered.
func NewProducer(cfg *Config) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	config.Version = sarama.V3_6_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}
