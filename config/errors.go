package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfiguration matches every ConfigurationError via errors.Is
	ErrInvalidConfiguration = errors.New("rabbitmq: invalid configuration")

	// ErrMissingValue is the cause of a ConfigurationError for an unset field
	ErrMissingValue = errors.New("value is required")
)

// ConfigurationError reports a missing or malformed setting.
// It is always raised before any network I/O takes place.
type ConfigurationError struct {
	Field string // Setting name (host, port, exchange, ...)
	Flag  string // CLI flag that sets it, if any
	Env   string // Environment variable that sets it, if any
	Err   error  // Underlying cause
}

func (e *ConfigurationError) Error() string {
	if errors.Is(e.Err, ErrMissingValue) {
		var hints []string
		if e.Flag != "" {
			hints = append(hints, "--"+e.Flag)
		}
		if e.Env != "" {
			hints = append(hints, "$"+e.Env)
		}
		if len(hints) == 0 {
			return fmt.Sprintf("rabbitmq configuration error: %s must not be empty", e.Field)
		}
		return fmt.Sprintf("rabbitmq configuration error: %s is not set (use %s)",
			e.Field, strings.Join(hints, " or "))
	}
	return fmt.Sprintf("rabbitmq configuration error: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is makes every ConfigurationError match ErrInvalidConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// Required returns a ConfigurationError for an empty name that has no
// flag or environment variable behind it, such as an exchange or queue name.
func Required(field string) error {
	return &ConfigurationError{Field: field, Err: ErrMissingValue}
}
