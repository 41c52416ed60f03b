package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/glimte/rabbitkit/config"
)

// DefaultExchangeKind is used when a declaration leaves Type empty
const DefaultExchangeKind = amqp.ExchangeDirect

// ExchangeDeclaration defines an exchange to be declared
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// QueueDeclaration defines a queue to be declared
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Lazy       bool
	Arguments  amqp.Table
}

// Binding defines a queue-to-exchange binding
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

// Topology represents a set of declarations applied in order:
// exchanges, then queues, then bindings
type Topology struct {
	Exchanges []ExchangeDeclaration
	Queues    []QueueDeclaration
	Bindings  []Binding
}

// DeclareTopology declares the complete topology on ch
func DeclareTopology(ch Channel, topology Topology) error {
	for _, exchange := range topology.Exchanges {
		if err := DeclareExchange(ch, exchange); err != nil {
			return err
		}
	}

	for _, queue := range topology.Queues {
		if _, err := DeclareQueue(ch, queue); err != nil {
			return err
		}
	}

	for _, binding := range topology.Bindings {
		if err := BindQueue(ch, binding); err != nil {
			return err
		}
	}

	return nil
}

// DeclareExchange declares a single exchange; redeclaring with the same
// parameters is a no-op on the broker
func DeclareExchange(ch Channel, exchange ExchangeDeclaration) error {
	if exchange.Name == "" {
		return config.Required("exchange")
	}
	kind := exchange.Type
	if kind == "" {
		kind = DefaultExchangeKind
	}

	err := ch.ExchangeDeclare(
		exchange.Name,
		kind,
		exchange.Durable,
		exchange.AutoDelete,
		false, // internal
		false, // no-wait
		exchange.Arguments,
	)
	if err != nil {
		return topologyError("exchange", exchange.Name, "declare", err)
	}
	return nil
}

// DeclareQueue declares a single queue
func DeclareQueue(ch Channel, queue QueueDeclaration) (amqp.Queue, error) {
	if queue.Name == "" {
		return amqp.Queue{}, config.Required("queue")
	}

	q, err := ch.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		false, // no-wait
		queueArguments(queue),
	)
	if err != nil {
		return amqp.Queue{}, topologyError("queue", queue.Name, "declare", err)
	}
	return q, nil
}

// BindQueue binds a queue to an exchange. An empty routing key is valid,
// e.g. for fanout exchanges.
func BindQueue(ch Channel, binding Binding) error {
	if binding.Exchange == "" {
		return config.Required("exchange")
	}
	if binding.Queue == "" {
		return config.Required("queue")
	}

	err := ch.QueueBind(
		binding.Queue,
		binding.RoutingKey,
		binding.Exchange,
		false, // no-wait
		binding.Arguments,
	)
	if err != nil {
		return topologyError("binding", binding.Queue+"->"+binding.Exchange, "declare", err)
	}
	return nil
}

// InspectQueue returns the queue's message and consumer counts without creating it
func InspectQueue(ch Channel, name string) (amqp.Queue, error) {
	if name == "" {
		return amqp.Queue{}, config.Required("queue")
	}

	q, err := ch.QueueDeclarePassive(name, false, false, false, false, nil)
	if err != nil {
		return amqp.Queue{}, topologyError("queue", name, "inspect", err)
	}
	return q, nil
}

// InspectExchange checks that the exchange exists without creating it
func InspectExchange(ch Channel, name, kind string) error {
	if name == "" {
		return config.Required("exchange")
	}
	if kind == "" {
		kind = DefaultExchangeKind
	}

	if err := ch.ExchangeDeclarePassive(name, kind, true, false, false, false, nil); err != nil {
		return topologyError("exchange", name, "inspect", err)
	}
	return nil
}

// queueArguments merges the lazy-mode flag into the declared arguments
func queueArguments(queue QueueDeclaration) amqp.Table {
	if !queue.Lazy {
		return queue.Arguments
	}

	args := amqp.Table{}
	for k, v := range queue.Arguments {
		args[k] = v
	}
	args["x-queue-mode"] = "lazy"
	return args
}

func topologyError(component, name, op string, err error) error {
	return &TopologyError{
		Component: component,
		Name:      name,
		Op:        op,
		Err:       err,
		Timestamp: time.Now(),
	}
}
