package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ContentTypeJSON is set on every message the Publisher sends
const ContentTypeJSON = "application/json"

// Publisher sends JSON-encoded messages on a single channel.
// Publishing is fire-and-forget: no confirms, no transactions, no retries.
type Publisher struct {
	ch         Channel
	persistent bool
	logger     *slog.Logger
}

// PublisherOption configures the publisher
type PublisherOption func(*Publisher)

// WithPersistent marks messages as persistent (delivery mode 2)
func WithPersistent(persistent bool) PublisherOption {
	return func(p *Publisher) {
		p.persistent = persistent
	}
}

// WithPublisherLogger sets the logger
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher on ch
func NewPublisher(ch Channel, options ...PublisherOption) *Publisher {
	p := &Publisher{
		ch:     ch,
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Publish encodes message as JSON and sends it to exchange with routingKey
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, message any) error {
	msg, err := p.encode(message)
	if err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	if err := p.ch.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		msg,
	); err != nil {
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        err,
			Timestamp:  time.Now(),
		}
	}

	p.logger.Debug("published message",
		"exchange", exchange,
		"routingKey", routingKey,
		"messageId", msg.MessageId,
		"size", len(msg.Body),
	)
	return nil
}

func (p *Publisher) encode(message any) (amqp.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode message: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  ContentTypeJSON,
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if p.persistent {
		msg.DeliveryMode = amqp.Persistent
	}
	return msg, nil
}
