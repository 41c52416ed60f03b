package config

// Field identifies one resolvable connection setting
type Field int

const (
	FieldHost Field = iota
	FieldPort
	FieldUsername
	FieldPassword
	FieldQueue
	FieldVHost
)

type fieldSpec struct {
	name      string
	flag      string
	shorthand string
	usage     string
}

var fieldSpecs = [...]fieldSpec{
	FieldHost:     {name: "host", flag: "host", shorthand: "H", usage: "rabbitmq host"},
	FieldPort:     {name: "port", flag: "port", shorthand: "p", usage: "rabbitmq port"},
	FieldUsername: {name: "username", flag: "username", shorthand: "U", usage: "rabbitmq username"},
	FieldPassword: {name: "password", flag: "password", shorthand: "P", usage: "rabbitmq password"},
	FieldQueue:    {name: "queue", flag: "queue", shorthand: "q", usage: "queue to consume from"},
	FieldVHost:    {name: "vhost", flag: "vhost", usage: "rabbitmq virtual host"},
}

// Fields returns all settings in resolution order
func Fields() []Field {
	return []Field{FieldHost, FieldPort, FieldUsername, FieldPassword, FieldQueue, FieldVHost}
}

func (f Field) String() string {
	if int(f) < 0 || int(f) >= len(fieldSpecs) {
		return "unknown"
	}
	return fieldSpecs[f].name
}

// Flag returns the long flag name for the field
func (f Field) Flag() string {
	if int(f) < 0 || int(f) >= len(fieldSpecs) {
		return ""
	}
	return fieldSpecs[f].flag
}

// EnvNames maps each field to the environment variable it is read from.
// An empty name disables the environment lookup for that field.
type EnvNames struct {
	Host     string
	Port     string
	Username string
	Password string
	Queue    string
	VHost    string
}

// DefaultEnvNames returns the RABBITMQ_* variable names
func DefaultEnvNames() EnvNames {
	return EnvNames{
		Host:     "RABBITMQ_HOST",
		Port:     "RABBITMQ_PORT",
		Username: "RABBITMQ_USERNAME",
		Password: "RABBITMQ_PASSWORD",
		Queue:    "RABBITMQ_QUEUE",
		VHost:    "RABBITMQ_VHOST",
	}
}

// For returns the variable name configured for f
func (n EnvNames) For(f Field) string {
	switch f {
	case FieldHost:
		return n.Host
	case FieldPort:
		return n.Port
	case FieldUsername:
		return n.Username
	case FieldPassword:
		return n.Password
	case FieldQueue:
		return n.Queue
	case FieldVHost:
		return n.VHost
	}
	return ""
}

// DefaultValues are the lenient fallbacks, matching a stock local broker
func DefaultValues() map[Field]string {
	return map[Field]string{
		FieldHost:     "localhost",
		FieldPort:     "5672",
		FieldUsername: "guest",
		FieldPassword: "guest",
		FieldQueue:    "hello",
		FieldVHost:    "/",
	}
}
