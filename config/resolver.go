package config

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/spf13/pflag"
)

// Mode selects what happens when no source provides a field
type Mode int

const (
	// Strict fails with a ConfigurationError naming the missing field
	Strict Mode = iota
	// Lenient falls back to DefaultValues
	Lenient
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	}
	return "unknown"
}

// Resolver builds a ConnectionConfig from environment, flags and files
type Resolver struct {
	mode     Mode
	envNames EnvNames
	flags    *pflag.FlagSet
	extra    []Source
	defaults map[Field]string
	logger   *slog.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithMode sets the missing-value policy
func WithMode(mode Mode) Option {
	return func(r *Resolver) {
		r.mode = mode
	}
}

// WithEnvNames overrides the environment variable names
func WithEnvNames(names EnvNames) Option {
	return func(r *Resolver) {
		r.envNames = names
	}
}

// WithFlagSet reads explicitly set flags from fs after the environment
func WithFlagSet(fs *pflag.FlagSet) Option {
	return func(r *Resolver) {
		r.flags = fs
	}
}

// WithSource appends a source consulted after environment and flags
func WithSource(src Source) Option {
	return func(r *Resolver) {
		r.extra = append(r.extra, src)
	}
}

// WithDefault replaces the lenient fallback for one field
func WithDefault(f Field, value string) Option {
	return func(r *Resolver) {
		r.defaults[f] = value
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a strict resolver reading the RABBITMQ_* variables
func NewResolver(options ...Option) *Resolver {
	r := &Resolver{
		mode:     Strict,
		envNames: DefaultEnvNames(),
		defaults: DefaultValues(),
		logger:   slog.Default(),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// With returns a copy of r with additional options applied; r is unchanged
func (r *Resolver) With(options ...Option) *Resolver {
	cp := &Resolver{
		mode:     r.mode,
		envNames: r.envNames,
		flags:    r.flags,
		extra:    append([]Source(nil), r.extra...),
		defaults: make(map[Field]string, len(r.defaults)),
		logger:   r.logger,
	}
	for f, v := range r.defaults {
		cp.defaults[f] = v
	}

	for _, opt := range options {
		opt(cp)
	}

	return cp
}

// Mode returns the missing-value policy
func (r *Resolver) Mode() Mode {
	return r.mode
}

func (r *Resolver) sources() []Source {
	srcs := []Source{NewEnvSource(r.envNames)}
	if r.flags != nil {
		srcs = append(srcs, NewFlagSource(r.flags))
	}
	return append(srcs, r.extra...)
}

// Lookup resolves a single field and reports which source supplied it
func (r *Resolver) Lookup(f Field) (value, source string, err error) {
	for _, src := range r.sources() {
		if v, ok := src.Lookup(f); ok {
			return v, src.Name(), nil
		}
	}

	// vhost is optional in both modes
	if f == FieldVHost {
		return DefaultValues()[FieldVHost], "default", nil
	}

	if r.mode == Lenient {
		if v, ok := r.defaults[f]; ok && v != "" {
			return v, "default", nil
		}
	}

	return "", "", r.fieldError(f, ErrMissingValue)
}

// Resolve looks up every field, parses the port and validates the result
func (r *Resolver) Resolve() (ConnectionConfig, error) {
	var cfg ConnectionConfig

	for _, f := range Fields() {
		v, src, err := r.Lookup(f)
		if err != nil {
			return ConnectionConfig{}, err
		}
		r.logger.Debug("resolved rabbitmq setting", "field", f.String(), "source", src)

		switch f {
		case FieldHost:
			cfg.Host = v
		case FieldPort:
			port, err := strconv.Atoi(v)
			if err != nil {
				return ConnectionConfig{}, r.fieldError(f, err)
			}
			cfg.Port = port
		case FieldUsername:
			cfg.Username = v
		case FieldPassword:
			cfg.Password = v
		case FieldQueue:
			cfg.QueueName = v
		case FieldVHost:
			cfg.VHost = v
		}
	}

	if cerr := cfg.validate(); cerr != nil {
		// report the variable name this resolver actually reads
		if f, ok := fieldByName(cerr.Field); ok {
			cerr.Env = r.envNames.For(f)
		}
		return ConnectionConfig{}, cerr
	}

	return cfg, nil
}

func (r *Resolver) fieldError(f Field, cause error) error {
	return &ConfigurationError{
		Field: f.String(),
		Flag:  f.Flag(),
		Env:   r.envNames.For(f),
		Err:   cause,
	}
}

func fieldByName(name string) (Field, bool) {
	for _, f := range Fields() {
		if f.String() == name {
			return f, true
		}
	}
	return 0, false
}

// IsMissing reports whether err is a ConfigurationError for an unset value
func IsMissing(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr) && errors.Is(cerr.Err, ErrMissingValue)
}
