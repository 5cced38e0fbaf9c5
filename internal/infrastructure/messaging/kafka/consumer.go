package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

var ErrConsumerClosed = errors.New(errors.ErrCodeMessageQueue, "consumer closed")

// Consumer reads messages from one topic within a consumer group.
type Consumer struct {
	reader *kafka.Reader
	topic  string
	logger logging.Logger
	closed atomic.Bool
}

// NewConsumer creates a group consumer on the given topic.
func NewConsumer(brokers []string, topic, groupID string, log logging.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	if topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "topic required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // explicit commits
	})
	return &Consumer{reader: reader, topic: topic, logger: log}, nil
}

// Fetch blocks until a message is available or ctx is cancelled.  The caller
// must Commit the message after processing it.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	if c.closed.Load() {
		return kafka.Message{}, ErrConsumerClosed
	}
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, errors.Wrap(err, errors.ErrCodeMessageQueue, "fetch failed").WithDetail(c.topic)
	}
	return msg, nil
}

// Commit acknowledges a fetched message.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "commit failed").WithDetail(c.topic)
	}
	return nil
}

// Close shuts the consumer down idempotently.
func (c *Consumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.reader.Close()
	c.logger.Info("Kafka consumer closed", logging.String("topic", c.topic))
	return err
}
