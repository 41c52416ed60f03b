package rabbitkit

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/rabbitkit/internal/rabbitmq"
)

type (
	// Dialer opens broker connections
	Dialer = rabbitmq.Dialer
	// Connection is an open broker connection
	Connection = rabbitmq.Connection
	// Channel is the channel surface the client uses
	Channel = rabbitmq.Channel

	ExchangeDeclaration = rabbitmq.ExchangeDeclaration
	QueueDeclaration    = rabbitmq.QueueDeclaration
	Binding             = rabbitmq.Binding
	Topology            = rabbitmq.Topology
)

// Handler is called once per delivery. Returning nil acks the delivery,
// an error nacks and requeues it (unless auto-ack is enabled).
type Handler func(ctx context.Context, delivery amqp.Delivery) error

// NewDialer returns the amqp091-backed dialer used by default. An empty
// connectionName and a zero heartbeat keep amqp091's defaults.
func NewDialer(connectionName string, heartbeat time.Duration) Dialer {
	var options []rabbitmq.DialerOption
	if connectionName != "" {
		options = append(options, rabbitmq.WithConnectionName(connectionName))
	}
	if heartbeat > 0 {
		options = append(options, rabbitmq.WithHeartbeat(heartbeat))
	}
	return rabbitmq.NewDialer(options...)
}
