package notifications

import (
	"context"
	"fmt"
	"time"

	"seatbook/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaProducerConfig contains configuration for the lifecycle producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "seat-lifecycle",
		RetryMax:         3,
		TimeoutMs:        10000,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
}

// KafkaProducer publishes lifecycle messages to a Kafka topic
type KafkaProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
	log      *logger.Logger
}

// NewKafkaProducer dials the brokers and returns a ready producer
func NewKafkaProducer(config *KafkaProducerConfig, log *logger.Logger) (*KafkaProducer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(config.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Idempotent producers require a single in-flight request
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner routes by event id
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaProducerWith(producer, config, log), nil
}

// NewKafkaProducerWith wraps an existing sarama producer
func NewKafkaProducerWith(producer sarama.SyncProducer, config *KafkaProducerConfig, log *logger.Logger) *KafkaProducer {
	if log == nil {
		log = logger.GetDefault()
	}
	return &KafkaProducer{producer: producer, config: config, log: log}
}

func (kp *KafkaProducer) Publish(ctx context.Context, event *LifecycleEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     kp.config.Topic,
		Key:       sarama.StringEncoder(event.PartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := kp.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send lifecycle event to Kafka: %w", err)
	}

	kp.log.DebugContext(ctx, "Lifecycle event published",
		"topic", kp.config.Topic,
		"partition", partition,
		"offset", offset,
		"type", event.Type,
		"event_id", event.EventID,
	)
	return nil
}

func (kp *KafkaProducer) Close() error {
	if err := kp.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

func createHeaders(event *LifecycleEvent) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("message_id"), Value: []byte(event.ID.String())},
		{Key: []byte("message_type"), Value: []byte(event.Type)},
		{Key: []byte("event_id"), Value: []byte(event.EventID)},
		{Key: []byte("producer"), Value: []byte("seatbook-ledger")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}
	if event.HoldID != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("hold_id"), Value: []byte(event.HoldID)})
	}
	if event.BookingID != "" {
		headers = append(headers, sarama.RecordHeader{Key: []byte("booking_id"), Value: []byte(event.BookingID)})
	}
	return headers
}
