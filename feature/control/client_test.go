package control

import (
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"prefork/core/server"
	"prefork/core/supervisor"
	"prefork/core/supervisor/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// serve runs a token-protected control app on an ephemeral port.
func serve(t *testing.T, ctl supervisor.Controller) string {
	t.Helper()
	app := newTestApp(t, `activate_control_app 'tcp://127.0.0.1:9292', { auth_token: "s3cret" }`, ctl, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, app, ln, server.Config{ShutdownTimeout: time.Second}) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return "tcp://" + ln.Addr().String()
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"TCP", "tcp://127.0.0.1:9292", "http://127.0.0.1:9292", false},
		{"HTTP", "http://127.0.0.1:9292/", "http://127.0.0.1:9292", false},
		{"Unix", "unix:///tmp/ctl.sock", "", true},
		{"NoHost", "tcp://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.raw, "", 0)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.base)
			assert.Equal(t, 5*time.Second, c.timeout)
		})
	}
}

func TestClient_RoundTrip(t *testing.T) {
	ctl := new(mocks.Controller)
	ctl.On("Stats").Return(supervisor.Stats{Status: &supervisor.Status{Running: 2, PoolCapacity: 4, MaxThreads: 5}})
	ctl.On("GCStats").Return(supervisor.GCStats{Count: 3, Goroutines: 9})
	ctl.On("Restart", mock.Anything).Return(nil)

	addr := serve(t, ctl)

	c, err := NewClient(addr, "s3cret", time.Second)
	require.NoError(t, err)

	st, err := c.Stats()
	require.NoError(t, err)
	require.NotNil(t, st.Status)
	assert.Equal(t, 4, st.Totals().PoolCapacity)

	gc, err := c.GCStats()
	require.NoError(t, err)
	assert.Equal(t, float64(3), gc["count"])
	assert.Equal(t, float64(9), gc["goroutines"])

	body, err := c.Command("restart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	_, err = c.Command("reboot")
	assert.ErrorContains(t, err, "unknown command")
	ctl.AssertExpectations(t)
}

func TestClient_Forbidden(t *testing.T) {
	addr := serve(t, new(mocks.Controller))

	c, err := NewClient(addr, "wrong", time.Second)
	require.NoError(t, err)

	_, err = c.Fetch("stats", url.Values{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "Invalid auth token")
}
