package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ConnectionConfig holds everything needed to open a broker connection
// and consume from the configured queue.
type ConnectionConfig struct {
	Host      string `mapstructure:"host" validate:"required"`
	Port      int    `mapstructure:"port" validate:"min=1,max=65535"`
	Username  string `mapstructure:"username" validate:"required"`
	Password  string `mapstructure:"password" validate:"required"`
	QueueName string `mapstructure:"queue" validate:"required"`
	VHost     string `mapstructure:"vhost"`
}

var structFields = map[string]Field{
	"Host":      FieldHost,
	"Port":      FieldPort,
	"Username":  FieldUsername,
	"Password":  FieldPassword,
	"QueueName": FieldQueue,
	"VHost":     FieldVHost,
}

// Validate checks that every required field is present and the port is in range
func (c ConnectionConfig) Validate() error {
	if err := c.validate(); err != nil {
		return err
	}
	return nil
}

func (c ConnectionConfig) validate() *ConfigurationError {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigurationError{Field: "config", Err: err}
	}

	fe := verrs[0]
	field, ok := structFields[fe.StructField()]
	if !ok {
		return &ConfigurationError{Field: fe.Field(), Err: err}
	}

	cause := ErrMissingValue
	if fe.Tag() != "required" {
		cause = fmt.Errorf("%v fails %q constraint %s", fe.Value(), fe.Tag(), fe.Param())
	}
	return &ConfigurationError{
		Field: field.String(),
		Flag:  field.Flag(),
		Env:   DefaultEnvNames().For(field),
		Err:   cause,
	}
}

// URL renders the AMQP URI for the connection, escaping credentials and vhost
func (c ConnectionConfig) URL() string {
	return c.url(url.UserPassword(c.Username, c.Password))
}

// String renders the URI with the password redacted
func (c ConnectionConfig) String() string {
	u, err := url.Parse(c.URL())
	if err != nil {
		return c.url(url.User(c.Username))
	}
	return u.Redacted()
}

func (c ConnectionConfig) url(user *url.Userinfo) string {
	u := url.URL{
		Scheme: "amqp",
		User:   user,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/",
	}
	if c.VHost != "" && c.VHost != "/" {
		u.Path = "/" + c.VHost
		u.RawPath = "/" + url.PathEscape(c.VHost)
	}
	return u.String()
}
