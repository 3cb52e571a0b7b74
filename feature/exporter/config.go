package exporter

import "time"

// Config holds configuration for the standalone exporter.
type Config struct {
	// BindAddress is where /metrics is served.
	BindAddress string `mapstructure:"bind_address" default:"0.0.0.0:9235"`
	// ControlURL is the control app to poll.
	ControlURL string `mapstructure:"control_url" default:"http://127.0.0.1:7353"`
	// AuthToken is sent as the token query parameter.
	AuthToken string `mapstructure:"auth_token" default:""`
	// Interval is the time between polls.
	Interval time.Duration `mapstructure:"interval" default:"5s"`
	// Timeout bounds a single request to the control app.
	Timeout time.Duration `mapstructure:"timeout" default:"3s"`
}
