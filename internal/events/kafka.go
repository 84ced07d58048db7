package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Gopher0727/AltMur/config"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

// KafkaNotifier publishes changes to a Kafka topic, keyed by entity and id
// so that changes of one row stay ordered within a partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier connects a synchronous producer to cfg.Brokers.
func NewKafkaNotifier(cfg *config.KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = max(cfg.MaxRetries, 1)
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second
	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, cfg.Topic), nil
}

func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// Notify publishes one change and waits for the broker to acknowledge it.
func (n *KafkaNotifier) Notify(ctx context.Context, change Change) error {
	if change.TraceID == "" {
		change.TraceID = logger.GetTraceID(ctx)
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}

	value, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(fmt.Sprintf("%s:%v", change.Entity, change.ID)),
		Value: sarama.ByteEncoder(value),
	}
	if change.TraceID != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte(logger.TraceHeader), Value: []byte(change.TraceID)}}
	}

	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send change event to topic %s: %w", n.topic, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		if err := n.producer.Close(); err != nil {
			return fmt.Errorf("failed to close kafka producer: %w", err)
		}
	}
	return nil
}
