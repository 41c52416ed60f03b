// Package config resolves RabbitMQ connection settings from layered sources.
//
// Every field of ConnectionConfig is looked up in order:
//   - the process environment (RABBITMQ_HOST, RABBITMQ_PORT, ...)
//   - command-line flags that were explicitly set (--host/-H, --port/-p, ...)
//   - an optional configuration file read through viper
//
// The first non-empty value wins. When no source provides a value the
// resolver's Mode decides: Strict returns a ConfigurationError naming the
// field, Lenient falls back to the defaults of a local development broker
// (localhost:5672, guest/guest, queue "hello").
package config
