package rabbitmq_test

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glimte/rabbitkit/internal/brokertest"
	"github.com/glimte/rabbitkit/internal/rabbitmq"
)

func TestConsumer(t *testing.T) {
	t.Run("NewConsumer generates a tag", func(t *testing.T) {
		a := rabbitmq.NewConsumer(&brokertest.MockChannel{}, "tasks")
		b := rabbitmq.NewConsumer(&brokertest.MockChannel{}, "tasks")

		assert.Contains(t, a.Tag(), "rabbitkit-")
		assert.NotEqual(t, a.Tag(), b.Tag())
	})

	t.Run("NewConsumer applies options", func(t *testing.T) {
		c := rabbitmq.NewConsumer(&brokertest.MockChannel{}, "tasks", rabbitmq.WithConsumerTag("worker-1"))
		assert.Equal(t, "worker-1", c.Tag())
	})

	t.Run("nil handler fails before touching the channel", func(t *testing.T) {
		ch := &brokertest.MockChannel{}

		err := rabbitmq.NewConsumer(ch, "tasks").Run(context.Background(), nil)
		assert.ErrorIs(t, err, rabbitmq.ErrNilHandler)
		assert.Empty(t, ch.Calls)
	})

	t.Run("acks on success and nacks on error until cancelled", func(t *testing.T) {
		okAck := &brokertest.MockAcknowledger{}
		okAck.On("Ack", uint64(1), false).Return(nil)
		failAck := &brokertest.MockAcknowledger{}
		failAck.On("Nack", uint64(2), false, true).Return(nil)

		deliveries, _ := brokertest.Deliveries(
			amqp.Delivery{Acknowledger: okAck, DeliveryTag: 1, Body: []byte(`{"n":1}`)},
			amqp.Delivery{Acknowledger: failAck, DeliveryTag: 2, Body: []byte(`{"n":2}`)},
		)

		ch := &brokertest.MockChannel{}
		ch.On("Qos", 5, 0, false).Return(nil)
		ch.On("Consume", "tasks", "worker-1", false, false, false, false, amqp.Table(nil)).Return(deliveries, nil)
		ch.On("Cancel", "worker-1", false).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var bodies []string
		handler := func(ctx context.Context, d amqp.Delivery) error {
			bodies = append(bodies, string(d.Body))
			if d.DeliveryTag == 2 {
				cancel()
				return errors.New("boom")
			}
			return nil
		}

		c := rabbitmq.NewConsumer(ch, "tasks",
			rabbitmq.WithConsumerTag("worker-1"),
			rabbitmq.WithPrefetchCount(5),
		)
		err := c.Run(ctx, handler)

		assert.NoError(t, err)
		assert.Equal(t, []string{`{"n":1}`, `{"n":2}`}, bodies)
		okAck.AssertExpectations(t)
		failAck.AssertExpectations(t)
		ch.AssertExpectations(t)
	})

	t.Run("auto ack leaves settlement to the broker", func(t *testing.T) {
		ack := &brokertest.MockAcknowledger{}
		deliveries, _ := brokertest.Deliveries(amqp.Delivery{Acknowledger: ack, DeliveryTag: 1})

		ch := &brokertest.MockChannel{}
		ch.On("Consume", "tasks", "t", true, false, false, false, amqp.Table(nil)).Return(deliveries, nil)
		ch.On("Cancel", "t", false).Return(nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		err := rabbitmq.NewConsumer(ch, "tasks", rabbitmq.WithConsumerTag("t"), rabbitmq.WithAutoAck(true)).
			Run(ctx, func(context.Context, amqp.Delivery) error {
				cancel()
				return nil
			})

		assert.NoError(t, err)
		assert.Empty(t, ack.Calls)
		ch.AssertNotCalled(t, "Qos", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("closed delivery stream is an error", func(t *testing.T) {
		deliveries, send := brokertest.Deliveries()
		close(send)

		ch := &brokertest.MockChannel{}
		ch.On("Consume", "tasks", "t", false, false, false, false, amqp.Table(nil)).Return(deliveries, nil)

		err := rabbitmq.NewConsumer(ch, "tasks", rabbitmq.WithConsumerTag("t")).
			Run(context.Background(), func(context.Context, amqp.Delivery) error { return nil })

		var consErr *rabbitmq.ConsumerError
		require.ErrorAs(t, err, &consErr)
		assert.Equal(t, "tasks", consErr.Queue)
		assert.ErrorIs(t, err, rabbitmq.ErrDeliveriesClosed)
	})

	t.Run("subscribe failure is returned", func(t *testing.T) {
		ch := &brokertest.MockChannel{}
		ch.On("Consume", "tasks", "t", false, false, false, false, amqp.Table(nil)).
			Return(nil, errors.New("NOT_FOUND - no queue 'tasks'"))

		err := rabbitmq.NewConsumer(ch, "tasks", rabbitmq.WithConsumerTag("t")).
			Run(context.Background(), func(context.Context, amqp.Delivery) error { return nil })

		var consErr *rabbitmq.ConsumerError
		require.ErrorAs(t, err, &consErr)
		assert.Equal(t, "subscribe", consErr.Op)
	})
}
