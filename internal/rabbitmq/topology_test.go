package rabbitmq_test

import (
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glimte/rabbitkit/config"
	"github.com/glimte/rabbitkit/internal/brokertest"
	"github.com/glimte/rabbitkit/internal/rabbitmq"
)

func TestDeclareExchange(t *testing.T) {
	t.Run("defaults to direct", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		ch.On("ExchangeDeclare", "orders", "direct", false, false, false, false, amqp.Table(nil)).Return(nil)

		err := rabbitmq.DeclareExchange(ch, rabbitmq.ExchangeDeclaration{Name: "orders"})
		assert.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("passes type and flags", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		ch.On("ExchangeDeclare", "events", "topic", true, false, false, false, amqp.Table(nil)).Return(nil)

		err := rabbitmq.DeclareExchange(ch, rabbitmq.ExchangeDeclaration{Name: "events", Type: "topic", Durable: true})
		assert.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("empty name is a configuration error", func(t *testing.T) {
		ch := &brokertest.MockChannel{}

		err := rabbitmq.DeclareExchange(ch, rabbitmq.ExchangeDeclaration{})
		assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
		ch.AssertNotCalled(t, "ExchangeDeclare", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("broker failure is a topology error", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		brokerErr := errors.New("PRECONDITION_FAILED")
		ch.On("ExchangeDeclare", "orders", "fanout", false, false, false, false, amqp.Table(nil)).Return(brokerErr)

		err := rabbitmq.DeclareExchange(ch, rabbitmq.ExchangeDeclaration{Name: "orders", Type: "fanout"})

		var topoErr *rabbitmq.TopologyError
		require.ErrorAs(t, err, &topoErr)
		assert.Equal(t, "exchange", topoErr.Component)
		assert.Equal(t, "orders", topoErr.Name)
		assert.ErrorIs(t, err, brokerErr)
	})
}

func TestDeclareQueue(t *testing.T) {
	t.Run("lazy queue adds queue mode argument", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		original := amqp.Table{"x-max-length": int32(100)}
		expected := amqp.Table{"x-max-length": int32(100), "x-queue-mode": "lazy"}
		ch.On("QueueDeclare", "tasks", true, false, false, false, expected).
			Return(amqp.Queue{Name: "tasks"}, nil)

		q, err := rabbitmq.DeclareQueue(ch, rabbitmq.QueueDeclaration{
			Name:      "tasks",
			Durable:   true,
			Lazy:      true,
			Arguments: original,
		})
		require.NoError(t, err)
		assert.Equal(t, "tasks", q.Name)
		assert.NotContains(t, original, "x-queue-mode")
		ch.AssertExpectations(t)
	})

	t.Run("plain queue keeps arguments as given", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		ch.On("QueueDeclare", "tasks", false, true, true, false, amqp.Table(nil)).
			Return(amqp.Queue{Name: "tasks"}, nil)

		_, err := rabbitmq.DeclareQueue(ch, rabbitmq.QueueDeclaration{Name: "tasks", AutoDelete: true, Exclusive: true})
		assert.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("empty name is a configuration error", func(t *testing.T) {
		_, err := rabbitmq.DeclareQueue(&brokertest.MockChannel{}, rabbitmq.QueueDeclaration{})
		assert.True(t, config.IsMissing(err))
	})
}

func TestBindQueue(t *testing.T) {
	t.Run("binds with routing key", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		ch.On("QueueBind", "tasks", "task.created", "events", false, amqp.Table(nil)).Return(nil)

		err := rabbitmq.BindQueue(ch, rabbitmq.Binding{Queue: "tasks", Exchange: "events", RoutingKey: "task.created"})
		assert.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("empty routing key is allowed", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		ch.On("QueueBind", "tasks", "", "broadcast", false, amqp.Table(nil)).Return(nil)

		assert.NoError(t, rabbitmq.BindQueue(ch, rabbitmq.Binding{Queue: "tasks", Exchange: "broadcast"}))
	})

	t.Run("names are required", func(t *testing.T) {
		ch := &brokertest.MockChannel{}

		var cerr *config.ConfigurationError
		err := rabbitmq.BindQueue(ch, rabbitmq.Binding{Queue: "tasks"})
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "exchange", cerr.Field)

		err = rabbitmq.BindQueue(ch, rabbitmq.Binding{Exchange: "events"})
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "queue", cerr.Field)

		ch.AssertNotCalled(t, "QueueBind", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeclareTopology(t *testing.T) {
	ch := &brokertest.MockChannel{}

	var order []string
	ch.On("ExchangeDeclare", "events", "topic", true, false, false, false, amqp.Table(nil)).
		Run(func(mock.Arguments) { order = append(order, "exchange") }).Return(nil)
	ch.On("QueueDeclare", "audit", true, false, false, false, amqp.Table(nil)).
		Run(func(mock.Arguments) { order = append(order, "queue") }).Return(amqp.Queue{Name: "audit"}, nil)
	ch.On("QueueBind", "audit", "#", "events", false, amqp.Table(nil)).
		Run(func(mock.Arguments) { order = append(order, "binding") }).Return(nil)

	err := rabbitmq.DeclareTopology(ch, rabbitmq.Topology{
		Bindings:  []rabbitmq.Binding{{Queue: "audit", Exchange: "events", RoutingKey: "#"}},
		Queues:    []rabbitmq.QueueDeclaration{{Name: "audit", Durable: true}},
		Exchanges: []rabbitmq.ExchangeDeclaration{{Name: "events", Type: "topic", Durable: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"exchange", "queue", "binding"}, order)
}

func TestInspectQueue(t *testing.T) {
	ch := &brokertest.MockChannel{}
	ch.On("QueueDeclarePassive", "tasks", false, false, false, false, amqp.Table(nil)).
		Return(amqp.Queue{Name: "tasks", Messages: 3, Consumers: 1}, nil)

	q, err := rabbitmq.InspectQueue(ch, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 3, q.Messages)
	assert.Equal(t, 1, q.Consumers)

	ch.On("QueueDeclarePassive", "missing", false, false, false, false, amqp.Table(nil)).
		Return(amqp.Queue{}, errors.New("NOT_FOUND"))

	_, err = rabbitmq.InspectQueue(ch, "missing")
	var topoErr *rabbitmq.TopologyError
	require.ErrorAs(t, err, &topoErr)
	assert.Equal(t, "inspect", topoErr.Op)
}

func TestInspectExchange(t *testing.T) {
	ch := &brokertest.MockChannel{}
	ch.On("ExchangeDeclarePassive", "amq.direct", "direct", true, false, false, false, amqp.Table(nil)).Return(nil)

	require.NoError(t, rabbitmq.InspectExchange(ch, "amq.direct", ""))

	ch.On("ExchangeDeclarePassive", "missing", "topic", true, false, false, false, amqp.Table(nil)).
		Return(amqp.ErrClosed)

	err := rabbitmq.InspectExchange(ch, "missing", "topic")
	var topoErr *rabbitmq.TopologyError
	require.ErrorAs(t, err, &topoErr)
	assert.Equal(t, "exchange", topoErr.Component)
	assert.Equal(t, "inspect", topoErr.Op)
	assert.ErrorIs(t, err, amqp.ErrClosed)

	assert.Error(t, rabbitmq.InspectExchange(ch, "", ""))
	ch.AssertNumberOfCalls(t, "ExchangeDeclarePassive", 2)
}
