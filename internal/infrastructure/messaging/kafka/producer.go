// Package kafka implements the rollout queue: the engine publishes rollout
// jobs, stateless workers consume them, run the rollouts locally and publish
// results back.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeMessageQueue, "producer closed")

// Producer publishes messages to one topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers []string, topic string, log logging.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "topic required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, topic: topic, logger: log}, nil
}

// Publish sends one message keyed by key.  Keying results by run id keeps a
// run's messages ordered within a partition.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "publish failed").WithDetail(p.topic)
	}
	p.sent.Add(1)
	p.logger.Debug("Message published",
		logging.String("topic", p.topic),
		logging.String("key", key),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed",
		logging.String("topic", p.topic),
		logging.Int64("sent", p.sent.Load()),
	)
	return err
}
