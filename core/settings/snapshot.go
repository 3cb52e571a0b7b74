package settings

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Snapshot is the serialisable form of ServerSettings handed to worker processes.
type Snapshot struct {
	Port                  int      `json:"port"`
	Workers               int      `json:"workers"`
	PreloadApp            bool     `json:"preload_app"`
	ControlURL            string   `json:"control_url,omitempty"`
	ControlAuth           string   `json:"control_auth,omitempty"`
	ControlToken          string   `json:"control_token,omitempty"`
	ControlDataOnly       bool     `json:"control_data_only,omitempty"`
	Plugins               []string `json:"plugins,omitempty"`
	MetricsURL            string   `json:"metrics_url"`
	WorkerTimeout         int      `json:"worker_timeout"`
	WorkerBootTimeout     int      `json:"worker_boot_timeout"`
	WorkerShutdownTimeout int      `json:"worker_shutdown_timeout"`
	MinThreads            int      `json:"min_threads"`
	MaxThreads            int      `json:"max_threads"`
	Environment           string   `json:"environment"`
	Tag                   string   `json:"tag,omitempty"`
}

// Snapshot returns a copy of s suitable for serialisation.
func (s *ServerSettings) Snapshot() Snapshot {
	snap := Snapshot{
		Port:                  s.port,
		Workers:               s.workerCount,
		PreloadApp:            s.preloadApp,
		Plugins:               slices.Clone(s.plugins),
		MetricsURL:            s.metricsURL.String(),
		WorkerTimeout:         int(s.workerTimeout / time.Second),
		WorkerBootTimeout:     int(s.workerBootTimeout / time.Second),
		WorkerShutdownTimeout: int(s.workerShutdownTimeout / time.Second),
		MinThreads:            s.minThreads,
		MaxThreads:            s.maxThreads,
		Environment:           s.environment,
		Tag:                   s.tag,
	}
	if s.controlURL != nil {
		snap.ControlURL = s.controlURL.String()
		snap.ControlAuth = s.controlAuth.String()
		snap.ControlToken = s.controlToken
		snap.ControlDataOnly = s.controlDataOnly
	}
	return snap
}

// Encode serialises the snapshot as JSON.
func (s Snapshot) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}
	return string(b), nil
}

// DecodeSnapshot parses JSON produced by Snapshot.Encode into settings.
func DecodeSnapshot(raw string) (*ServerSettings, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return FromSnapshot(snap)
}

// FromSnapshot rebuilds settings from a snapshot, re-checking every range.
func FromSnapshot(snap Snapshot) (*ServerSettings, error) {
	if err := validPort(snap.Port); err != nil {
		return nil, &ConfigError{Directive: "port", Reason: err.Error()}
	}
	if snap.Workers < 0 {
		return nil, &ConfigError{Directive: "workers", Reason: "worker count must be >= 0"}
	}
	if snap.MaxThreads < 1 || snap.MinThreads < 0 || snap.MinThreads > snap.MaxThreads {
		return nil, &ConfigError{Directive: "threads", Reason: "invalid thread bounds"}
	}

	s := &ServerSettings{
		port:                  snap.Port,
		workerCount:           snap.Workers,
		preloadApp:            snap.PreloadApp,
		plugins:               slices.Clone(snap.Plugins),
		workerTimeout:         time.Duration(snap.WorkerTimeout) * time.Second,
		workerBootTimeout:     time.Duration(snap.WorkerBootTimeout) * time.Second,
		workerShutdownTimeout: time.Duration(snap.WorkerShutdownTimeout) * time.Second,
		minThreads:            snap.MinThreads,
		maxThreads:            snap.MaxThreads,
		environment:           snap.Environment,
		tag:                   snap.Tag,
	}

	metricsURL, err := parseTCPURL(snap.MetricsURL)
	if err != nil {
		return nil, &ConfigError{Directive: "metrics_url", Reason: err.Error()}
	}
	s.metricsURL = metricsURL

	if snap.ControlURL != "" {
		u, err := parseTCPURL(snap.ControlURL)
		if err != nil {
			return nil, &ConfigError{Directive: "activate_control_app", Reason: err.Error()}
		}
		s.controlURL = &u
		if snap.ControlAuth == AuthNoToken.String() {
			s.controlAuth = AuthNoToken
		}
		s.controlToken = snap.ControlToken
		s.controlDataOnly = snap.ControlDataOnly
	}

	return s, nil
}

// ParseURL validates a tcp:// URL the same way the directives do.
func ParseURL(raw string) (url.URL, error) {
	return parseTCPURL(raw)
}
