package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp.Channel the connector uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	IsClosed() bool
	Close() error
}

// Connection is an open broker connection
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens broker connections
type Dialer interface {
	Dial(ctx context.Context, url string) (Connection, error)
}

var _ Channel = (*amqp.Channel)(nil)

// AMQPDialer dials RabbitMQ through amqp091
type AMQPDialer struct {
	config *amqp.Config
}

// DialerOption configures the AMQPDialer
type DialerOption func(*AMQPDialer)

// WithConnectionName reports name to the broker as the client connection name
func WithConnectionName(name string) DialerOption {
	return func(d *AMQPDialer) {
		cfg := d.amqpConfig()
		cfg.Properties["connection_name"] = name
		d.config = cfg
	}
}

// WithHeartbeat sets the heartbeat interval negotiated with the broker
func WithHeartbeat(interval time.Duration) DialerOption {
	return func(d *AMQPDialer) {
		cfg := d.amqpConfig()
		cfg.Heartbeat = interval
		d.config = cfg
	}
}

// NewDialer creates an amqp091-backed Dialer
func NewDialer(options ...DialerOption) *AMQPDialer {
	d := &AMQPDialer{}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// amqpConfig returns the current config, starting from amqp.Dial's defaults
func (d *AMQPDialer) amqpConfig() *amqp.Config {
	if d.config != nil {
		return d.config
	}
	return &amqp.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: amqp.Table{},
	}
}

// Dial connects to url. It returns early if ctx ends before the broker answers;
// a connection that completes afterwards is closed. The returned error wraps
// both ErrConnectionTimeout and ctx.Err(), so a cancelled context can be told
// apart from an expired deadline.
func (d *AMQPDialer) Dial(ctx context.Context, url string) (Connection, error) {
	connChan := make(chan *amqp.Connection, 1)
	errChan := make(chan error, 1)

	go func() {
		var (
			conn *amqp.Connection
			err  error
		)
		if d.config != nil {
			conn, err = amqp.DialConfig(url, *d.config)
		} else {
			conn, err = amqp.Dial(url)
		}
		if err != nil {
			errChan <- err
			return
		}
		connChan <- conn
	}()

	select {
	case conn := <-connChan:
		return &amqpConnection{conn: conn}, nil

	case err := <-errChan:
		return nil, err

	case <-ctx.Done():
		go func() {
			select {
			case conn := <-connChan:
				conn.Close()
			case <-errChan:
			}
		}()
		return nil, fmt.Errorf("%w: %w", ErrConnectionTimeout, ctx.Err())
	}
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) IsClosed() bool {
	return c.conn.IsClosed()
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}
