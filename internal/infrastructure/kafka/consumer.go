package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, key, value []byte) error

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerOption func(*Consumer)

// WithRetryPolicy decides which handler errors are worth handling the same
// message again. Other errors are logged and the message is committed.
func WithRetryPolicy(fn func(error) bool) ConsumerOption {
	return func(c *Consumer) { c.retryable = fn }
}

// WithMaxAttempts gives up on a message after n failed attempts, logging and
// committing it so the partition keeps moving. Zero means no limit.
func WithMaxAttempts(n int) ConsumerOption {
	return func(c *Consumer) { c.maxAttempts = n }
}

func WithBackoff(initial, max time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.initialBackoff = initial
		c.maxBackoff = max
	}
}

// Consumer reads one message at a time and commits its offset only once the
// handler is done with it, so a crash means redelivery rather than loss.
type Consumer struct {
	reader         messageReader
	logger         *zap.Logger
	retryable      func(error) bool
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, logger.With(zap.String("topic", topic), zap.String("group", groupID)), opts...)
}

func newConsumer(reader messageReader, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:         reader,
		logger:         logger,
		retryable:      func(error) bool { return false },
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume runs until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("error reading message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.initialBackoff):
			}
			continue
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("error committing message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// handle retries retryable failures with exponential backoff, up to
// maxAttempts. It returns an error only when ctx ends first.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler MessageHandler) error {
	backoff := c.initialBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log := c.logger.With(
			zap.String("key", string(msg.Key)),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if !c.retryable(err) {
			log.Error("error handling message, skipping")
			return nil
		}
		if c.maxAttempts > 0 && attempt >= c.maxAttempts {
			log.Error("giving up on message after repeated failures")
			return nil
		}

		log.Warn("error handling message, retrying", zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
