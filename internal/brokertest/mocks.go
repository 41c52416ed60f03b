// Package brokertest provides testify mocks of the broker interfaces.
package brokertest

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"

	"github.com/glimte/rabbitkit/internal/rabbitmq"
)

var (
	_ rabbitmq.Dialer     = (*MockDialer)(nil)
	_ rabbitmq.Connection = (*MockConnection)(nil)
	_ rabbitmq.Channel    = (*MockChannel)(nil)
	_ amqp.Acknowledger   = (*MockAcknowledger)(nil)
)

// MockDialer records Dial calls
type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context, url string) (rabbitmq.Connection, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(rabbitmq.Connection), args.Error(1)
}

// MockConnection is a mock broker connection
type MockConnection struct {
	mock.Mock
}

func (m *MockConnection) Channel() (rabbitmq.Channel, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(rabbitmq.Channel), args.Error(1)
}

func (m *MockConnection) IsClosed() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockChannel is a mock AMQP channel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	mockArgs := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return mockArgs.Error(0)
}

func (m *MockChannel) ExchangeDeclarePassive(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	mockArgs := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return mockArgs.Error(0)
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	mockArgs := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return mockArgs.Get(0).(amqp.Queue), mockArgs.Error(1)
}

func (m *MockChannel) QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	mockArgs := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return mockArgs.Get(0).(amqp.Queue), mockArgs.Error(1)
}

func (m *MockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	mockArgs := m.Called(name, key, exchange, noWait, args)
	return mockArgs.Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	mockArgs := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return mockArgs.Error(0)
}

func (m *MockChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	mockArgs := m.Called(prefetchCount, prefetchSize, global)
	return mockArgs.Error(0)
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	mockArgs := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	if mockArgs.Get(0) == nil {
		return nil, mockArgs.Error(1)
	}
	return mockArgs.Get(0).(<-chan amqp.Delivery), mockArgs.Error(1)
}

func (m *MockChannel) Cancel(consumer string, noWait bool) error {
	mockArgs := m.Called(consumer, noWait)
	return mockArgs.Error(0)
}

func (m *MockChannel) IsClosed() bool {
	mockArgs := m.Called()
	return mockArgs.Bool(0)
}

func (m *MockChannel) Close() error {
	mockArgs := m.Called()
	return mockArgs.Error(0)
}

// MockAcknowledger records how deliveries were settled
type MockAcknowledger struct {
	mock.Mock
}

func (m *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	args := m.Called(tag, multiple)
	return args.Error(0)
}

func (m *MockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	args := m.Called(tag, multiple, requeue)
	return args.Error(0)
}

func (m *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	args := m.Called(tag, requeue)
	return args.Error(0)
}

// Deliveries returns a buffered delivery stream preloaded with msgs, as the
// receive-only type Channel.Consume returns. The send side is returned so
// tests can close it.
func Deliveries(msgs ...amqp.Delivery) (<-chan amqp.Delivery, chan amqp.Delivery) {
	ch := make(chan amqp.Delivery, len(msgs)+1)
	for _, msg := range msgs {
		ch <- msg
	}
	return ch, ch
}
