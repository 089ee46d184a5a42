// Package kafka wraps segmentio/kafka-go for the document-changed topic. The
// producer serialises events as JSON; the consumer hands each message to a
// MessageHandler and commits it once handled.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Talent-Matching-Platform/pkg/resilience"
)

// ErrPoison marks a message that can never be processed. The consumer logs
// and commits it instead of retrying.
var ErrPoison = errors.New("unprocessable message")

// MessageHandler is invoked once per delivered message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// reader is the subset of *kafka.Reader the consume loop needs.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic in a consumer group.
type Consumer struct {
	reader     reader
	handler    MessageHandler
	retry      resilience.RetryConfig
	fetchPause time.Duration
	logger     *slog.Logger
}

// NewConsumer creates a Consumer for topic. New groups start at the latest
// offset: older change events concern cache entries that have expired.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r reader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			ShouldRetry:  func(err error) bool { return !errors.Is(err, ErrPoison) },
		},
		fetchPause: time.Second,
		logger:     slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled, then closes the reader. Transient
// handler errors are retried a few times; a message that still fails is
// logged and committed so one bad entry cannot stall the partition.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return c.reader.Close()
			}
			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-time.After(c.fetchPause):
			case <-ctx.Done():
			}
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
	log.Debug("message received", "value_size", len(msg.Value))

	err := resilience.Retry(ctx, "kafka-handler", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrPoison):
		log.Warn("skipping unprocessable message", "error", err)
	default:
		log.Error("giving up on message", "error", err)
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T. Decode failures are wrapped
// with ErrPoison.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("%w: decoding kafka message: %v", ErrPoison, err)
	}
	return result, nil
}
