// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rabbitkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/rabbitkit/config"
	"github.com/glimte/rabbitkit/internal/rabbitmq"
)

// ErrPresetConfig is returned by Connect when resolver overrides are passed to
// a client built WithConfig
var ErrPresetConfig = errors.New("rabbitmq: connect overrides cannot be used with a preset config")

// Client connects to a broker with resolved settings and forwards
// declare, bind, publish and consume calls to a single channel.
type Client struct {
	resolver    *config.Resolver
	preset      *config.ConnectionConfig
	dialer      Dialer
	logger      *slog.Logger
	autoAck     bool
	prefetch    int
	consumerTag string
	persistent  bool
	exclusive   bool

	mu    sync.Mutex
	cfg   config.ConnectionConfig
	conn  Connection
	ch    Channel
	state State
}

// New creates an unconnected client
func New(options ...Option) *Client {
	cfg := &clientConfig{
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(cfg)
	}

	if cfg.resolver == nil {
		cfg.resolver = config.NewResolver(config.WithLogger(cfg.logger))
	}
	if cfg.dialer == nil {
		cfg.dialer = rabbitmq.NewDialer()
	}

	return &Client{
		resolver:    cfg.resolver,
		preset:      cfg.preset,
		dialer:      cfg.dialer,
		logger:      cfg.logger,
		autoAck:     cfg.autoAck,
		prefetch:    cfg.prefetch,
		consumerTag: cfg.consumerTag,
		persistent:  cfg.persistent,
		exclusive:   cfg.exclusive,
		state:       StateUnconnected,
	}
}

// Connect resolves the connection settings, dials the broker and opens one
// channel. overrides apply to this call only, e.g. config.WithEnvNames; they
// cannot be combined with WithConfig and return ErrPresetConfig if they are.
// Configuration errors are returned before any network I/O; connection
// failures are returned as *rabbitmq.ConnectionError and never retried.
// Connect on a connected client is a no-op unless the broker has closed the
// channel, in which case it dials again.
func (c *Client) Connect(ctx context.Context, overrides ...config.Option) error {
	cfg, err := c.resolve(overrides)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected || c.state == StateConsuming {
		if c.ch != nil && !c.ch.IsClosed() {
			return nil
		}
		c.logger.Warn("channel closed by broker, reconnecting")
		if c.conn != nil && !c.conn.IsClosed() {
			c.conn.Close()
		}
		c.ch = nil
		c.conn = nil
		c.state = StateUnconnected
	}

	url := cfg.URL()
	conn, err := c.dialer.Dial(ctx, url)
	if err != nil {
		return &rabbitmq.ConnectionError{
			Op:        "dial",
			URL:       rabbitmq.SanitizeURL(url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return &rabbitmq.ConnectionError{
			Op:        "open channel",
			URL:       rabbitmq.SanitizeURL(url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	c.cfg = cfg
	c.conn = conn
	c.ch = ch
	c.state = StateConnected

	c.logger.Info("connected to RabbitMQ", "url", cfg.String(), "queue", cfg.QueueName)
	return nil
}

func (c *Client) resolve(overrides []config.Option) (config.ConnectionConfig, error) {
	if c.preset != nil {
		if len(overrides) > 0 {
			return config.ConnectionConfig{}, ErrPresetConfig
		}
		if err := c.preset.Validate(); err != nil {
			return config.ConnectionConfig{}, err
		}
		return *c.preset, nil
	}
	return c.resolver.With(overrides...).Resolve()
}

// channel returns the open channel or a PreconditionError naming op
func (c *Client) channel(op string) (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil || (c.state != StateConnected && c.state != StateConsuming) || c.ch.IsClosed() {
		return nil, &rabbitmq.PreconditionError{Op: op}
	}
	return c.ch, nil
}

// DeclareExchange declares exchange name of the given kind; an empty kind
// means "direct". Declaring an existing exchange with the same kind is a no-op.
func (c *Client) DeclareExchange(ctx context.Context, name, kind string) error {
	return c.DeclareExchangeWith(ctx, ExchangeDeclaration{Name: name, Type: kind})
}

// DeclareExchangeWith declares an exchange with full control over its flags
func (c *Client) DeclareExchangeWith(ctx context.Context, exchange ExchangeDeclaration) error {
	if exchange.Name == "" {
		return config.Required("exchange")
	}
	ch, err := c.channel("declare exchange")
	if err != nil {
		return err
	}
	return rabbitmq.DeclareExchange(ch, exchange)
}

// QueueOptions controls how DeclareQueue creates a queue
type QueueOptions struct {
	Durable   bool
	Lazy      bool // keep messages on disk (x-queue-mode=lazy)
	Arguments amqp.Table
}

// DefaultQueueOptions declares a durable queue
func DefaultQueueOptions() QueueOptions {
	return QueueOptions{Durable: true}
}

// DeclareQueue declares queue name
func (c *Client) DeclareQueue(ctx context.Context, name string, opts QueueOptions) (amqp.Queue, error) {
	if name == "" {
		return amqp.Queue{}, config.Required("queue")
	}
	ch, err := c.channel("declare queue")
	if err != nil {
		return amqp.Queue{}, err
	}
	return rabbitmq.DeclareQueue(ch, QueueDeclaration{
		Name:      name,
		Durable:   opts.Durable,
		Lazy:      opts.Lazy,
		Arguments: opts.Arguments,
	})
}

// BindQueue binds queue to exchange with routingKey, which may be empty
func (c *Client) BindQueue(ctx context.Context, exchange, queue, routingKey string) error {
	if exchange == "" {
		return config.Required("exchange")
	}
	if queue == "" {
		return config.Required("queue")
	}
	ch, err := c.channel("bind queue")
	if err != nil {
		return err
	}
	return rabbitmq.BindQueue(ch, Binding{Queue: queue, Exchange: exchange, RoutingKey: routingKey})
}

// DeclareAndBindQueue declares a durable lazy queue and binds it to exchange
func (c *Client) DeclareAndBindQueue(ctx context.Context, exchange, queue, routingKey string) error {
	if _, err := c.DeclareQueue(ctx, queue, QueueOptions{Durable: true, Lazy: true}); err != nil {
		return err
	}
	return c.BindQueue(ctx, exchange, queue, routingKey)
}

// DeclareTopology declares exchanges, then queues, then bindings
func (c *Client) DeclareTopology(ctx context.Context, topology Topology) error {
	ch, err := c.channel("declare topology")
	if err != nil {
		return err
	}
	return rabbitmq.DeclareTopology(ch, topology)
}

// InspectQueue reports the queue's message and consumer counts.
// The queue must already exist.
func (c *Client) InspectQueue(ctx context.Context, name string) (amqp.Queue, error) {
	if name == "" {
		return amqp.Queue{}, config.Required("queue")
	}
	ch, err := c.channel("inspect queue")
	if err != nil {
		return amqp.Queue{}, err
	}
	return rabbitmq.InspectQueue(ch, name)
}

// InspectExchange checks that exchange name of the given kind exists without
// creating it. The broker closes the channel when it does not.
func (c *Client) InspectExchange(ctx context.Context, name, kind string) error {
	if name == "" {
		return config.Required("exchange")
	}
	ch, err := c.channel("inspect exchange")
	if err != nil {
		return err
	}
	return rabbitmq.InspectExchange(ch, name, kind)
}

// Publish sends message, encoded as JSON, to exchange with routingKey.
// There is no confirmation wait and no retry.
func (c *Client) Publish(ctx context.Context, exchange, routingKey string, message any) error {
	ch, err := c.channel("publish")
	if err != nil {
		return err
	}
	return rabbitmq.NewPublisher(ch,
		rabbitmq.WithPersistent(c.persistent),
		rabbitmq.WithPublisherLogger(c.logger),
	).Publish(ctx, exchange, routingKey, message)
}

// Consume invokes handler for every delivery on the configured queue and
// blocks until ctx is done. On cancellation the consumer is cancelled and the
// channel and connection are closed; that path returns nil.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	if handler == nil {
		return rabbitmq.ErrNilHandler
	}

	c.mu.Lock()
	if c.ch == nil || c.state != StateConnected || c.ch.IsClosed() {
		state := c.state
		c.mu.Unlock()
		if state == StateConsuming {
			return errors.New("rabbitmq: client is already consuming")
		}
		return &rabbitmq.PreconditionError{Op: "consume"}
	}
	ch := c.ch
	queue := c.cfg.QueueName
	c.state = StateConsuming
	c.mu.Unlock()

	consumer := rabbitmq.NewConsumer(ch, queue,
		rabbitmq.WithAutoAck(c.autoAck),
		rabbitmq.WithPrefetchCount(c.prefetch),
		rabbitmq.WithConsumerTag(c.consumerTag),
		rabbitmq.WithExclusive(c.exclusive),
		rabbitmq.WithConsumerLogger(c.logger),
	)
	runErr := consumer.Run(ctx, rabbitmq.MessageHandler(handler))

	if closeErr := c.Close(); closeErr != nil {
		c.logger.Warn("failed to close after consuming", "error", closeErr)
		if runErr == nil {
			return closeErr
		}
	}
	return runErr
}

// Close closes the channel and the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.state == StateUnconnected {
		c.state = StateClosed
		return nil
	}

	var errs []error
	if c.ch != nil && !c.ch.IsClosed() {
		if err := c.ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.ch = nil
	c.conn = nil
	c.state = StateClosed
	c.logger.Info("connection closed")

	return errors.Join(errs...)
}

// State returns the client's lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the settings of the current or last connection
func (c *Client) Config() config.ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// clientConfig holds client configuration
type clientConfig struct {
	logger      *slog.Logger
	resolver    *config.Resolver
	preset      *config.ConnectionConfig
	dialer      Dialer
	autoAck     bool
	prefetch    int
	consumerTag string
	persistent  bool
	exclusive   bool
}

// Option configures the client
type Option func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithResolver sets how connection settings are resolved
func WithResolver(resolver *config.Resolver) Option {
	return func(cfg *clientConfig) {
		cfg.resolver = resolver
	}
}

// WithConfig uses fixed settings instead of resolving them
func WithConfig(connCfg config.ConnectionConfig) Option {
	return func(cfg *clientConfig) {
		cfg.preset = &connCfg
	}
}

// WithDialer replaces the amqp091 dialer, mainly for tests
func WithDialer(dialer Dialer) Option {
	return func(cfg *clientConfig) {
		cfg.dialer = dialer
	}
}

// WithAutoAck lets the broker consider deliveries settled on send
func WithAutoAck(autoAck bool) Option {
	return func(cfg *clientConfig) {
		cfg.autoAck = autoAck
	}
}

// WithPrefetchCount limits unacknowledged deliveries in flight
func WithPrefetchCount(count int) Option {
	return func(cfg *clientConfig) {
		cfg.prefetch = count
	}
}

// WithConsumerTag sets the consumer tag; a random one is used otherwise
func WithConsumerTag(tag string) Option {
	return func(cfg *clientConfig) {
		cfg.consumerTag = tag
	}
}

// WithPersistentMessages publishes with delivery mode 2
func WithPersistentMessages(persistent bool) Option {
	return func(cfg *clientConfig) {
		cfg.persistent = persistent
	}
}

// WithExclusive asks the broker to make this the queue's only consumer
func WithExclusive(exclusive bool) Option {
	return func(cfg *clientConfig) {
		cfg.exclusive = exclusive
	}
}
