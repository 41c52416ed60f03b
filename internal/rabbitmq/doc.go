// Package rabbitmq wraps the amqp091 client for the rabbitkit connector.
//
// This package includes:
//   - Dialer, Connection, Channel: the narrow broker surface the connector uses
//   - AMQPDialer: the amqp091-backed Dialer
//   - Topology helpers: exchange, queue and binding declarations
//   - Publisher: JSON publishing without confirms
//   - Consumer: a blocking delivery loop that stops when its context ends
//
// Everything here performs a single call into the broker library per
// operation. There is no reconnection, pooling or retry.
package rabbitmq
