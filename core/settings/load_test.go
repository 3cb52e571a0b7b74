package settings_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"prefork/core/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `port 3000
workers 3
preload_app!
activate_control_app 'tcp://127.0.0.1:9292', { no_token: true }
plugin 'metrics'
metrics_url 'tcp://0.0.0.0:9393'
`

func TestParse_Sample(t *testing.T) {
	s, err := settings.Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, 3000, s.Port())
	assert.Equal(t, 3, s.WorkerCount())
	assert.True(t, s.ClusterMode())
	assert.True(t, s.PreloadApp())
	assert.True(t, s.ControlEnabled())
	control := s.ControlURL()
	assert.Equal(t, "tcp://127.0.0.1:9292", control.String())
	assert.Equal(t, settings.AuthNoToken, s.ControlAuth())
	assert.Empty(t, s.ControlToken())
	assert.Equal(t, settings.PluginMetrics, s.MetricsPluginName())
	metrics := s.MetricsURL()
	assert.Equal(t, "tcp://0.0.0.0:9393", metrics.String())
}

func TestParse_Defaults(t *testing.T) {
	s, err := settings.Parse(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, settings.DefaultPort, s.Port())
	assert.Equal(t, 0, s.WorkerCount())
	assert.False(t, s.ClusterMode())
	assert.False(t, s.PreloadApp())
	assert.False(t, s.ControlEnabled())
	assert.Empty(t, s.MetricsPluginName())
	metrics := s.MetricsURL()
	assert.Equal(t, settings.DefaultMetricsURL, metrics.String())
	assert.Equal(t, 60*time.Second, s.WorkerTimeout())
	assert.Equal(t, 60*time.Second, s.WorkerBootTimeout())
	assert.Equal(t, 30*time.Second, s.WorkerShutdownTimeout())
	assert.Equal(t, 0, s.MinThreads())
	assert.Equal(t, 5, s.MaxThreads())
	assert.Equal(t, "development", s.Environment())
	assert.Equal(t, "0.0.0.0:9292", s.BindAddress())
}

func TestParse_PortRange(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{1, false},
		{80, false},
		{3000, false},
		{65535, false},
		{0, true},
		{-1, true},
		{65536, true},
		{100000, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.port), func(t *testing.T) {
			s, err := settings.Parse(strings.NewReader(fmt.Sprintf("port %d\n", tt.port)))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, s)
				var cerr *settings.ConfigError
				require.True(t, errors.As(err, &cerr))
				assert.Equal(t, "port", cerr.Directive)
				assert.Equal(t, 1, cerr.Line)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.port, s.Port())
		})
	}
}

func TestParse_URLScheme(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"ControlTCP", `activate_control_app 'tcp://127.0.0.1:9292'`, false},
		{"ControlUnix", `activate_control_app 'unix:///tmp/ctl.sock'`, true},
		{"ControlHTTP", `activate_control_app 'http://127.0.0.1:9292'`, true},
		{"ControlNoScheme", `activate_control_app '127.0.0.1:9292'`, true},
		{"MetricsTCP", `metrics_url 'tcp://127.0.0.1:9400'`, false},
		{"MetricsSSL", `metrics_url 'ssl://127.0.0.1:9400'`, true},
		{"MetricsNoPort", `metrics_url 'tcp://127.0.0.1'`, true},
		{"MetricsBadPort", `metrics_url 'tcp://127.0.0.1:70000'`, true},
		{"MetricsPath", `metrics_url 'tcp://127.0.0.1:9400/metrics'`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := settings.Parse(strings.NewReader(tt.input))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cerr *settings.ConfigError
			require.True(t, errors.As(err, &cerr), "error %v is not a ConfigError", err)
			assert.NotEmpty(t, cerr.Reason)
		})
	}
}

func TestParse_Workers(t *testing.T) {
	s, err := settings.Parse(strings.NewReader("workers 3"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.WorkerCount())

	_, err = settings.Parse(strings.NewReader("workers -2"))
	require.Error(t, err)

	_, err = settings.Parse(strings.NewReader("workers 'three'"))
	require.Error(t, err)

	s, err = settings.Parse(strings.NewReader(fmt.Sprintf("workers %d", settings.MaxWorkers)))
	require.NoError(t, err)
	assert.Equal(t, settings.MaxWorkers, s.WorkerCount())

	_, err = settings.Parse(strings.NewReader(fmt.Sprintf("workers %d", settings.MaxWorkers+1)))
	require.Error(t, err)

	_, err = settings.Parse(strings.NewReader("workers 9223372036854775807"))
	var cerr *settings.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "workers", cerr.Directive)
}

func TestParse_ControlAuth(t *testing.T) {
	t.Run("NoToken", func(t *testing.T) {
		s, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292', { no_token: true }`))
		require.NoError(t, err)
		assert.Equal(t, settings.AuthNoToken, s.ControlAuth())
	})

	t.Run("NoTokenFalse", func(t *testing.T) {
		s, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292', { no_token: false }`))
		require.NoError(t, err)
		assert.Equal(t, settings.AuthToken, s.ControlAuth())
		assert.Len(t, s.ControlToken(), 32)
	})

	t.Run("GeneratedToken", func(t *testing.T) {
		s, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292'`))
		require.NoError(t, err)
		assert.Equal(t, settings.AuthToken, s.ControlAuth())
		assert.Len(t, s.ControlToken(), 32)
	})

	t.Run("ExplicitToken", func(t *testing.T) {
		s, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292', { :auth_token => "s3cret", data_only: true }`))
		require.NoError(t, err)
		assert.Equal(t, settings.AuthToken, s.ControlAuth())
		assert.Equal(t, "s3cret", s.ControlToken())
		assert.True(t, s.ControlDataOnly())
	})

	t.Run("Conflicting", func(t *testing.T) {
		_, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292', { no_token: true, auth_token: "x" }`))
		require.Error(t, err)
	})

	t.Run("UnknownOption", func(t *testing.T) {
		_, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292', { secret: "x" }`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown option "secret"`)
	})

	t.Run("OptionsNotHash", func(t *testing.T) {
		_, err := settings.Parse(strings.NewReader(`activate_control_app 'tcp://127.0.0.1:9292', true`))
		require.Error(t, err)
	})
}

func TestParse_MetricsURLDefault(t *testing.T) {
	s, err := settings.Parse(strings.NewReader("port 3000\nplugin 'metrics'\n"))
	require.NoError(t, err)
	u := s.MetricsURL()
	assert.Equal(t, "tcp://0.0.0.0:9393", u.String())
	assert.Equal(t, "0.0.0.0:9393", u.Host)
}

func TestParse_Plugins(t *testing.T) {
	s, err := settings.Parse(strings.NewReader("plugin 'metrics'\nplugin 'metrics'\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"metrics"}, s.Plugins())

	_, err = settings.Parse(strings.NewReader("plugin 'tmp_restart'"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown plugin")
}

func TestParse_SharedAddressesLoad(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"ControlSampleLine", "activate_control_app 'tcp://127.0.0.1:9292', { no_token: true }\n"},
		{"SamplePort9292", strings.Replace(sample, "port 3000", "port 9292", 1)},
		{"SamplePort9393", strings.Replace(sample, "port 3000", "port 9393", 1)},
		{"MetricsOnControl", "plugin 'metrics'\nactivate_control_app 'tcp://127.0.0.1:9393'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := settings.Parse(strings.NewReader(tt.input))
			assert.NoError(t, err)
		})
	}

	t.Run("LoneControlLineIsNoToken", func(t *testing.T) {
		s, err := settings.Parse(strings.NewReader("activate_control_app 'tcp://127.0.0.1:9292', { no_token: true }\n"))
		require.NoError(t, err)
		assert.Equal(t, settings.DefaultPort, s.Port())
		assert.Equal(t, settings.AuthNoToken, s.ControlAuth())
		u := s.ControlURL()
		assert.Equal(t, "127.0.0.1:9292", u.Host)
	})
}

func TestParse_Threads(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		min, max int
		wantErr  bool
	}{
		{"Pair", "threads 2, 16", 2, 16, false},
		{"Single", "threads 8", 8, 8, false},
		{"Parens", "threads(0, 4)", 0, 4, false},
		{"Inverted", "threads 8, 2", 0, 0, true},
		{"ZeroMax", "threads 0, 0", 0, 0, true},
		{"Negative", "threads -1, 2", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := settings.Parse(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.min, s.MinThreads())
			assert.Equal(t, tt.max, s.MaxThreads())
		})
	}
}

func TestParse_Timeouts(t *testing.T) {
	s, err := settings.Parse(strings.NewReader("worker_timeout 20\nworker_shutdown_timeout 5\n"))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, s.WorkerTimeout())
	assert.Equal(t, 20*time.Second, s.WorkerBootTimeout())
	assert.Equal(t, 5*time.Second, s.WorkerShutdownTimeout())

	s, err = settings.Parse(strings.NewReader("worker_timeout 20\nworker_boot_timeout 90\n"))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, s.WorkerBootTimeout())

	_, err = settings.Parse(strings.NewReader("worker_timeout 0"))
	assert.Error(t, err)
}

func TestParse_AggregatesErrors(t *testing.T) {
	input := "port 0\nworkers -1\nbind 'tcp://0.0.0.0:1'\nmetrics_url 'unix:///m.sock'\n"

	s, err := settings.Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Nil(t, s)

	errs := settings.ConfigErrors(err)
	require.Len(t, errs, 4)

	got := make([]string, 0, len(errs))
	for _, e := range errs {
		got = append(got, fmt.Sprintf("%s:%d", e.Directive, e.Line))
	}
	assert.Equal(t, []string{"port:1", "workers:2", "bind:3", "metrics_url:4"}, got)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := settings.Parse(strings.NewReader("port 3000\nworkers 'two\n"))
	require.Error(t, err)

	var cerr *settings.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 2, cerr.Line)
	assert.Empty(t, cerr.Directive)
}

func TestParse_ArgumentCount(t *testing.T) {
	tests := []string{
		"port",
		"port 1, 2",
		"preload_app! true",
		"plugin",
		"tag",
		"environment ''",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := settings.Parse(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestParse_PreloadApp(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"preload_app!", true},
		{"preload_app", true},
		{"preload_app true", true},
		{"preload_app false", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, err := settings.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.PreloadApp())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "puma.rb")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := settings.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, s.Port())

	_, err = settings.Load(filepath.Join(dir, "missing.rb"))
	require.Error(t, err)
	var cerr *settings.ConfigError
	assert.True(t, errors.As(err, &cerr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
