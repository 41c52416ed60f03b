// Package rabbitkit is a small RabbitMQ client for services that only need to
// declare a little topology, publish JSON and run one consumer.
//
// Connection settings are resolved by package config from environment
// variables, command-line flags and optional files. A Client then moves
// through Unconnected → Connected → Consuming → Closed:
//
//	client := rabbitkit.New(rabbitkit.WithResolver(config.NewResolver(config.WithFlagSet(flags))))
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err := client.Publish(ctx, "events", "user.created", map[string]any{"id": 42})
//
// Consume blocks until its context is cancelled, typically by a signal:
//
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err := client.Consume(ctx, func(ctx context.Context, d amqp.Delivery) error {
//		return handle(d.Body)
//	})
//
// All broker work is delegated to github.com/rabbitmq/amqp091-go; the client
// adds no retries, pooling or reconnection.
package rabbitkit
