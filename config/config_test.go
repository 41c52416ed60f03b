package config

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionConfigURL(t *testing.T) {
	tests := []struct {
		name  string
		cfg   ConnectionConfig
		vhost string
	}{
		{
			name:  "default vhost",
			cfg:   ConnectionConfig{Host: "localhost", Port: 5672, Username: "guest", Password: "guest", VHost: "/"},
			vhost: "/",
		},
		{
			name:  "empty vhost",
			cfg:   ConnectionConfig{Host: "localhost", Port: 5672, Username: "guest", Password: "guest"},
			vhost: "/",
		},
		{
			name:  "named vhost and special characters",
			cfg:   ConnectionConfig{Host: "mq.example.com", Port: 5671, Username: "svc@app", Password: "p@ss:w/rd", VHost: "orders"},
			vhost: "orders",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := amqp.ParseURI(tt.cfg.URL())
			require.NoError(t, err)

			assert.Equal(t, tt.cfg.Host, uri.Host)
			assert.Equal(t, tt.cfg.Port, uri.Port)
			assert.Equal(t, tt.cfg.Username, uri.Username)
			assert.Equal(t, tt.cfg.Password, uri.Password)
			assert.Equal(t, tt.vhost, uri.Vhost)
		})
	}
}

func TestConnectionConfigString(t *testing.T) {
	cfg := ConnectionConfig{Host: "localhost", Port: 5672, Username: "guest", Password: "secret"}

	s := cfg.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "guest")
	assert.Contains(t, s, "localhost:5672")
}

func TestConnectionConfigValidate(t *testing.T) {
	valid := ConnectionConfig{Host: "h", Port: 5672, Username: "u", Password: "p", QueueName: "q"}
	assert.NoError(t, valid.Validate())

	missingUser := valid
	missingUser.Username = ""
	err := missingUser.Validate()

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "username", cerr.Field)
	assert.Equal(t, "RABBITMQ_USERNAME", cerr.Env)
	assert.True(t, IsMissing(err))

	badPort := valid
	badPort.Port = -1
	err = badPort.Validate()
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "port", cerr.Field)
	assert.False(t, IsMissing(err))

	t.Run("port zero is out of range, not missing", func(t *testing.T) {
		zeroPort := valid
		zeroPort.Port = 0
		err := zeroPort.Validate()

		var cerr *ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "port", cerr.Field)
		assert.False(t, IsMissing(err))
		assert.Contains(t, err.Error(), `"min"`)
		assert.NotContains(t, err.Error(), "not set")
	})

	t.Run("port above 65535 is out of range", func(t *testing.T) {
		highPort := valid
		highPort.Port = 65536
		err := highPort.Validate()

		assert.ErrorIs(t, err, ErrInvalidConfiguration)
		assert.Contains(t, err.Error(), `"max"`)
	})
}
