package server

import "time"

// Config holds configuration shared by the HTTP endpoints (control, metrics, workers).
type Config struct {
	// ReadTimeout bounds reading a request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" default:"10s"`
	// WriteTimeout bounds writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" default:"10s"`
	// IdleTimeout bounds keep-alive connections.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" default:"60s"`
	// ShutdownTimeout bounds graceful shutdown of an endpoint.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
	// RequestLogging logs every request at info level.
	RequestLogging bool `mapstructure:"request_logging" default:"true"`
}

// DefaultShutdownTimeout applies when Config.ShutdownTimeout is unset.
const DefaultShutdownTimeout = 10 * time.Second
