package rabbitmq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes incoming messages
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer runs a blocking delivery loop for one queue on one channel
type Consumer struct {
	ch            Channel
	queue         string
	prefetchCount int
	autoAck       bool
	exclusive     bool
	consumerTag   string
	logger        *slog.Logger
}

// ConsumerOption configures the consumer
type ConsumerOption func(*Consumer)

// WithPrefetchCount sets the prefetch count; zero leaves the broker default
func WithPrefetchCount(count int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetchCount = count
	}
}

// WithAutoAck enables automatic acknowledgment
func WithAutoAck(autoAck bool) ConsumerOption {
	return func(c *Consumer) {
		c.autoAck = autoAck
	}
}

// WithExclusive sets exclusive consumer mode
func WithExclusive(exclusive bool) ConsumerOption {
	return func(c *Consumer) {
		c.exclusive = exclusive
	}
}

// WithConsumerTag sets the consumer tag
func WithConsumerTag(tag string) ConsumerOption {
	return func(c *Consumer) {
		c.consumerTag = tag
	}
}

// WithConsumerLogger sets the logger
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a consumer for queue on ch
func NewConsumer(ch Channel, queue string, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		ch:     ch,
		queue:  queue,
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.consumerTag == "" {
		c.consumerTag = "rabbitkit-" + uuid.NewString()
	}

	return c
}

// Tag returns the consumer tag registered with the broker
func (c *Consumer) Tag() string {
	return c.consumerTag
}

// Run registers the consumer and dispatches deliveries to handler until ctx
// is done. Cancellation is a normal stop and returns nil; a delivery stream
// closed by the broker returns a ConsumerError.
func (c *Consumer) Run(ctx context.Context, handler MessageHandler) error {
	if handler == nil {
		return ErrNilHandler
	}

	if c.prefetchCount > 0 {
		if err := c.ch.Qos(c.prefetchCount, 0, false); err != nil {
			return c.consumerError("qos", err)
		}
	}

	deliveries, err := c.ch.Consume(
		c.queue,
		c.consumerTag,
		c.autoAck,
		c.exclusive,
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return c.consumerError("subscribe", err)
	}

	c.logger.Info("consuming from queue",
		"queue", c.queue,
		"consumerTag", c.consumerTag,
		"prefetchCount", c.prefetchCount,
	)

	for {
		select {
		case <-ctx.Done():
			if err := c.ch.Cancel(c.consumerTag, false); err != nil {
				c.logger.Warn("failed to cancel consumer", "queue", c.queue, "error", err)
			}
			c.logger.Info("consumer stopped", "queue", c.queue)
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", c.queue)
				return c.consumerError("consume", ErrDeliveriesClosed)
			}

			if err := c.handleMessage(ctx, delivery, handler); err != nil {
				c.logger.Error("failed to handle message",
					"error", err,
					"queue", c.queue,
					"messageId", delivery.MessageId,
				)
			}
		}
	}
}

// handleMessage runs the handler and settles the delivery: ack on success,
// nack with requeue on error. Auto-ack deliveries are already settled.
func (c *Consumer) handleMessage(ctx context.Context, delivery amqp.Delivery, handler MessageHandler) error {
	err := handler(ctx, delivery)

	if !c.autoAck {
		if err != nil {
			if nackErr := delivery.Nack(false, true); nackErr != nil {
				c.logger.Error("failed to nack message",
					"error", nackErr,
					"originalError", err,
				)
			}
		} else {
			if ackErr := delivery.Ack(false); ackErr != nil {
				c.logger.Error("failed to ack message", "error", ackErr)
			}
		}
	}

	return err
}

func (c *Consumer) consumerError(op string, err error) error {
	return &ConsumerError{
		Queue:       c.queue,
		ConsumerTag: c.consumerTag,
		Op:          op,
		Err:         err,
		Timestamp:   time.Now(),
	}
}
