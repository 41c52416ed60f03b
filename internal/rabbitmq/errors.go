package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrNotConnected is the cause of every PreconditionError
	ErrNotConnected = errors.New("rabbitmq: channel is not open, call Connect first")

	// ErrConnectionTimeout is returned when the dial context ends first
	ErrConnectionTimeout = errors.New("rabbitmq: connection timeout")

	// ErrNilHandler is returned when Consume is given no callback
	ErrNilHandler = errors.New("rabbitmq: message handler is required")

	// ErrDeliveriesClosed is returned when the broker closes the delivery stream
	ErrDeliveriesClosed = errors.New("rabbitmq: delivery channel closed")
)

// ConnectionError represents a connection-related error
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq connection error: %s %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PreconditionError is returned when an operation needs an open channel
type PreconditionError struct {
	Op string // Operation that was attempted
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("rabbitmq: cannot %s: %v", e.Op, ErrNotConnected)
}

func (e *PreconditionError) Unwrap() error {
	return ErrNotConnected
}

// PublishError represents a publish operation error
type PublishError struct {
	Exchange   string    // Target exchange
	RoutingKey string    // Routing key used
	Err        error     // Underlying error
	Timestamp  time.Time // When the error occurred
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("rabbitmq publish error: failed to publish to %q/%q: %v",
		e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumerError represents a consumer-related error
type ConsumerError struct {
	Queue       string    // Queue name
	ConsumerTag string    // Consumer tag
	Op          string    // Operation that failed
	Err         error     // Underlying error
	Timestamp   time.Time // When the error occurred
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("rabbitmq consumer error: %s failed for consumer %s on queue %s: %v",
		e.Op, e.ConsumerTag, e.Queue, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}

// TopologyError represents a topology-related error
type TopologyError struct {
	Component string    // Component type (exchange, queue, binding)
	Name      string    // Component name
	Op        string    // Operation that failed
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("rabbitmq topology error: failed to %s %s '%s': %v",
		e.Op, e.Component, e.Name, e.Err)
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err was caused by a missing channel
func IsPrecondition(err error) bool {
	var perr *PreconditionError
	return errors.As(err, &perr)
}

// SanitizeURL removes the password from a connection URL
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
