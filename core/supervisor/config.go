package supervisor

import "time"

// Config holds process-level supervisor settings that do not belong in the
// directive file.
type Config struct {
	// ConfigFile is the path of the directive file.
	ConfigFile string `mapstructure:"config_file" default:"config/puma.rb"`
	// Executable is the binary re-executed for workers; empty means the running binary.
	Executable string `mapstructure:"executable" default:""`
	// CheckinInterval is how often workers report their status.
	CheckinInterval time.Duration `mapstructure:"checkin_interval" default:"5s"`
	// RespawnDelay throttles respawning workers that crashed.
	RespawnDelay time.Duration `mapstructure:"respawn_delay" default:"1s"`
	// TimeoutCheckInterval is how often boot and check-in deadlines are evaluated.
	TimeoutCheckInterval time.Duration `mapstructure:"timeout_check_interval" default:"1s"`
}

func (c Config) withDefaults() Config {
	if c.CheckinInterval <= 0 {
		c.CheckinInterval = 5 * time.Second
	}
	if c.RespawnDelay <= 0 {
		c.RespawnDelay = time.Second
	}
	if c.TimeoutCheckInterval <= 0 {
		c.TimeoutCheckInterval = time.Second
	}
	return c
}
