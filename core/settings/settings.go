package settings

import (
	"net"
	"net/url"
	"slices"
	"strconv"
	"time"
)

// AuthMode is the authentication policy of the control endpoint.
type AuthMode int

const (
	// AuthToken requires the shared token with every command.
	AuthToken AuthMode = iota
	// AuthNoToken accepts any connection that reaches the bound interface.
	AuthNoToken
)

func (m AuthMode) String() string {
	if m == AuthNoToken {
		return "no_token"
	}
	return "token"
}

// PluginMetrics is the name of the built-in metrics plugin.
const PluginMetrics = "metrics"

// KnownPlugins lists the plugin names accepted by the `plugin` directive.
var KnownPlugins = []string{PluginMetrics}

const (
	DefaultPort                  = 9292
	DefaultMetricsURL            = "tcp://0.0.0.0:9393"
	DefaultWorkerTimeout         = 60 * time.Second
	DefaultWorkerShutdownTimeout = 30 * time.Second
	DefaultMinThreads            = 0
	DefaultMaxThreads            = 5
	DefaultEnvironment           = "development"
)

// MaxWorkers caps the workers directive.
const MaxWorkers = 1024

// ServerSettings is the validated result of loading a directive file.
// It is immutable: all state is unexported and accessors return copies.
type ServerSettings struct {
	port                  int
	workerCount           int
	preloadApp            bool
	controlURL            *url.URL
	controlAuth           AuthMode
	controlToken          string
	controlDataOnly       bool
	plugins               []string
	metricsURL            url.URL
	workerTimeout         time.Duration
	workerBootTimeout     time.Duration
	workerShutdownTimeout time.Duration
	minThreads            int
	maxThreads            int
	environment           string
	tag                   string
}

// Port is the primary listen port.
func (s *ServerSettings) Port() int { return s.port }

// BindAddress is the host:port the primary listener binds to.
func (s *ServerSettings) BindAddress() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(s.port))
}

// WorkerCount is the number of worker processes; 0 means single-process mode.
func (s *ServerSettings) WorkerCount() int { return s.workerCount }

// ClusterMode reports whether workers are spawned.
func (s *ServerSettings) ClusterMode() bool { return s.workerCount > 0 }

// PreloadApp reports whether the application loads once before workers spawn.
func (s *ServerSettings) PreloadApp() bool { return s.preloadApp }

// ControlEnabled reports whether activate_control_app was given.
func (s *ServerSettings) ControlEnabled() bool { return s.controlURL != nil }

// ControlURL returns the control endpoint URL; the zero URL when disabled.
func (s *ServerSettings) ControlURL() url.URL {
	if s.controlURL == nil {
		return url.URL{}
	}
	return *s.controlURL
}

// ControlAuth returns the control endpoint authentication policy.
func (s *ServerSettings) ControlAuth() AuthMode { return s.controlAuth }

// ControlToken returns the shared secret used in token mode.
func (s *ServerSettings) ControlToken() string { return s.controlToken }

// ControlDataOnly reports whether the control endpoint only serves read commands.
func (s *ServerSettings) ControlDataOnly() bool { return s.controlDataOnly }

// Plugins returns the enabled plugin names in declaration order.
func (s *ServerSettings) Plugins() []string { return slices.Clone(s.plugins) }

// MetricsPluginName returns the metrics plugin identifier when enabled, else "".
func (s *ServerSettings) MetricsPluginName() string {
	if slices.Contains(s.plugins, PluginMetrics) {
		return PluginMetrics
	}
	return ""
}

// MetricsURL returns the metrics endpoint URL.
func (s *ServerSettings) MetricsURL() url.URL { return s.metricsURL }

// WorkerTimeout is the maximum time between two worker check-ins.
func (s *ServerSettings) WorkerTimeout() time.Duration { return s.workerTimeout }

// WorkerBootTimeout is the maximum time a worker may take to boot.
func (s *ServerSettings) WorkerBootTimeout() time.Duration { return s.workerBootTimeout }

// WorkerShutdownTimeout bounds a graceful worker stop.
func (s *ServerSettings) WorkerShutdownTimeout() time.Duration { return s.workerShutdownTimeout }

// MinThreads and MaxThreads bound per-worker request concurrency.
func (s *ServerSettings) MinThreads() int { return s.minThreads }

func (s *ServerSettings) MaxThreads() int { return s.maxThreads }

// Environment is the application environment name.
func (s *ServerSettings) Environment() string { return s.environment }

// Tag is an optional process tag used in logs and process titles.
func (s *ServerSettings) Tag() string { return s.tag }
