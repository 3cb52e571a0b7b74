package settings_test

import (
	"strings"
	"testing"

	"prefork/core/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerSettings_AccessorsReturnCopies(t *testing.T) {
	s, err := settings.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	plugins := s.Plugins()
	plugins[0] = "mutated"
	assert.Equal(t, []string{"metrics"}, s.Plugins())

	u := s.ControlURL()
	u.Host = "evil:1"
	again := s.ControlURL()
	assert.Equal(t, "127.0.0.1:9292", again.Host)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s, err := settings.Parse(strings.NewReader(sample + "threads 1, 8\ntag 'api'\n"))
	require.NoError(t, err)

	raw, err := s.Snapshot().Encode()
	require.NoError(t, err)

	got, err := settings.DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), got.Snapshot())
	assert.Equal(t, 3, got.WorkerCount())
	assert.Equal(t, settings.AuthNoToken, got.ControlAuth())
	assert.Equal(t, "api", got.Tag())
}

func TestFromSnapshot_Invalid(t *testing.T) {
	base, err := settings.Parse(strings.NewReader(""))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*settings.Snapshot)
	}{
		{"Port", func(s *settings.Snapshot) { s.Port = 0 }},
		{"Workers", func(s *settings.Snapshot) { s.Workers = -1 }},
		{"Threads", func(s *settings.Snapshot) { s.MaxThreads = 0 }},
		{"MetricsURL", func(s *settings.Snapshot) { s.MetricsURL = "http://x:1" }},
		{"ControlURL", func(s *settings.Snapshot) { s.ControlURL = "unix:///x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := base.Snapshot()
			tt.mutate(&snap)
			_, err := settings.FromSnapshot(snap)
			assert.Error(t, err)
		})
	}
}

func TestAuthMode_String(t *testing.T) {
	assert.Equal(t, "token", settings.AuthToken.String())
	assert.Equal(t, "no_token", settings.AuthNoToken.String())
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  settings.ConfigError
		want string
	}{
		{"Full", settings.ConfigError{Directive: "port", Line: 3, Reason: "bad"}, "config: port (line 3): bad"},
		{"NoLine", settings.ConfigError{Directive: "port", Reason: "bad"}, "config: port: bad"},
		{"NoDirective", settings.ConfigError{Line: 2, Reason: "bad"}, "config: line 2: bad"},
		{"Bare", settings.ConfigError{Reason: "bad"}, "config: bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
