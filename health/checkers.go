package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/rabbitkit"
	"github.com/glimte/rabbitkit/config"
)

// Broker is the part of *rabbitkit.Client the checkers use
type Broker interface {
	State() rabbitkit.State
	Config() config.ConnectionConfig
	InspectQueue(ctx context.Context, name string) (amqp.Queue, error)
	InspectExchange(ctx context.Context, name, kind string) error
}

// livenessExchange is declared by every RabbitMQ vhost
const livenessExchange = "amq.direct"

var _ Broker = (*rabbitkit.Client)(nil)

// ConnectionChecker checks that the client holds an open channel and that the
// broker answers a passive declare of amq.direct on it
type ConnectionChecker struct {
	broker Broker
	logger *slog.Logger
}

// NewConnectionChecker creates a new connection health checker
func NewConnectionChecker(broker Broker, logger *slog.Logger) *ConnectionChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionChecker{
		broker: broker,
		logger: logger,
	}
}

func (c *ConnectionChecker) Name() string {
	return "rabbitmq"
}

func (c *ConnectionChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	state := c.broker.State()
	result.Details["state"] = state.String()

	if state != rabbitkit.StateConnected && state != rabbitkit.StateConsuming {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Client is %s", state)
		result.Duration = time.Since(start)
		c.logger.Debug("rabbitmq health check failed", "state", state.String())
		return result
	}

	if err := c.broker.InspectExchange(ctx, livenessExchange, amqp.ExchangeDirect); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Broker did not answer on the open channel"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		c.logger.Debug("rabbitmq health check failed", "exchange", livenessExchange, "error", err)
		return result
	}

	result.Status = StatusHealthy
	result.Message = "Connection is healthy"
	result.Details["url"] = c.broker.Config().String()
	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()
	return result
}

// DefaultMessageThreshold is the queue depth above which a queue is degraded
const DefaultMessageThreshold = 10000

// QueueChecker checks if a specific queue exists and is accessible
type QueueChecker struct {
	queueName string
	threshold int
	broker    Broker
	logger    *slog.Logger
}

// NewQueueChecker creates a new queue health checker. An empty queueName
// checks the client's configured queue.
func NewQueueChecker(queueName string, broker Broker, logger *slog.Logger) *QueueChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueChecker{
		queueName: queueName,
		threshold: DefaultMessageThreshold,
		broker:    broker,
		logger:    logger,
	}
}

// WithThreshold sets the degraded message count
func (c *QueueChecker) WithThreshold(messages int) *QueueChecker {
	c.threshold = messages
	return c
}

func (c *QueueChecker) queue() string {
	if c.queueName != "" {
		return c.queueName
	}
	return c.broker.Config().QueueName
}

func (c *QueueChecker) Name() string {
	return fmt.Sprintf("queue_%s", c.queue())
}

func (c *QueueChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	name := c.queue()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	queue, err := c.broker.InspectQueue(ctx, name)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Queue %s not accessible", name)
		result.Error = err.Error()
		result.Duration = time.Since(start)
		c.logger.Debug("queue health check failed", "queue", name, "error", err)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("Queue %s is accessible", name)
	result.Duration = time.Since(start)
	result.Details["queue_name"] = queue.Name
	result.Details["message_count"] = queue.Messages
	result.Details["consumer_count"] = queue.Consumers
	result.Details["response_time_ms"] = result.Duration.Milliseconds()

	if queue.Messages > c.threshold {
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("Queue %s has high message count", name)
	}

	return result
}
