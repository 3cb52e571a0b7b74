package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWorkerSpec_EnvironRoundTrip(t *testing.T) {
	st := mustSettings(t, "workers 2\nport 3000")
	raw, err := st.Snapshot().Encode()
	require.NoError(t, err)

	spec := WorkerSpec{Index: 1, Phase: 4, Preloaded: true, Settings: raw, CheckinInterval: 250 * time.Millisecond}
	vars := map[string]string{}
	for _, kv := range spec.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		vars[k] = v
	}

	env, err := ParseWorkerEnv(func(k string) string { return vars[k] })
	require.NoError(t, err)
	assert.Equal(t, 1, env.Index)
	assert.Equal(t, 4, env.Phase)
	assert.True(t, env.Preloaded)
	assert.Equal(t, 250*time.Millisecond, env.CheckinInterval)
	assert.Equal(t, 3000, env.Settings.Port())
}

func TestParseWorkerEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"Empty", map[string]string{}},
		{"BadIndex", map[string]string{EnvWorkerIndex: "x", EnvWorkerPhase: "0"}},
		{"NoSettings", map[string]string{EnvWorkerIndex: "0", EnvWorkerPhase: "0"}},
		{"BadSettings", map[string]string{EnvWorkerIndex: "0", EnvWorkerPhase: "0", EnvSettings: "{"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWorkerEnv(func(k string) string { return tt.vars[k] })
			assert.Error(t, err)
		})
	}
}

func TestReadCheckins_SkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"booted","pid":7,"status":{"max_threads":5}}`,
		`not json`,
		`{"type":"unknown"}`,
		`{"type":"status","pid":7,"status":{"running":2,"requests_count":3}}`,
	}, "\n")

	out := make(chan Checkin, 4)
	require.NoError(t, ReadCheckins(strings.NewReader(input), out))
	close(out)

	var got []Checkin
	for c := range out {
		got = append(got, c)
	}
	require.Len(t, got, 2)
	assert.Equal(t, CheckinBooted, got[0].Type)
	assert.Equal(t, 5, got[0].Status.MaxThreads)
	assert.Equal(t, 2, got[1].Status.Running)
	assert.Equal(t, uint64(3), got[1].Status.RequestsCount)
}

func TestRunWorker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := &fakeApp{status: Status{PoolCapacity: 5, MaxThreads: 5}}
	env := WorkerEnv{Index: 0, Phase: 0, Settings: mustSettings(t, "workers 1"), CheckinInterval: 20 * time.Millisecond}

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- RunWorker(ctx, env, app, ln, pw, zap.NewNop()) }()

	sc := bufio.NewScanner(pr)
	var types []string
	for len(types) < 3 && sc.Scan() {
		var c Checkin
		require.NoError(t, json.Unmarshal(sc.Bytes(), &c))
		types = append(types, c.Type)
	}
	assert.Equal(t, []string{CheckinBooted, CheckinStatus, CheckinStatus}, types)

	preloads, serves := app.counts()
	assert.Equal(t, 1, preloads, "worker preloads when the parent did not")
	assert.Equal(t, 1, serves)

	cancel()
	go io.Copy(io.Discard, pr)
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("worker did not stop")
	}
}

func TestRunWorker_SupervisorGone(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := &fakeApp{}
	env := WorkerEnv{Preloaded: true, Settings: mustSettings(t, "workers 1"), CheckinInterval: 10 * time.Millisecond}

	pr, pw := io.Pipe()
	pr.Close()

	err = RunWorker(context.Background(), env, app, ln, pw, zap.NewNop())
	assert.Error(t, err)

	preloads, _ := app.counts()
	assert.Equal(t, 0, preloads)
}

func TestRunWorker_ServeFailsBeforeBoot(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	app := &fakeApp{serveErr: errors.New("bind handler failed")}
	env := WorkerEnv{Preloaded: true, Settings: mustSettings(t, "workers 1"), CheckinInterval: 10 * time.Millisecond}

	var report bytes.Buffer
	err = RunWorker(context.Background(), env, app, ln, &report, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to boot")
	assert.Empty(t, report.String(), "no booted check-in for a worker that never served")
}

func TestStats_Totals(t *testing.T) {
	cs := &ClusterStats{WorkerStatus: []WorkerStatus{
		{Booted: true, LastStatus: Status{Backlog: 1, Running: 2, PoolCapacity: 3, MaxThreads: 5, RequestsCount: 10}},
		{Booted: true, LastStatus: Status{Backlog: 0, Running: 1, PoolCapacity: 4, MaxThreads: 5, RequestsCount: 5}},
		{Booted: false, LastStatus: Status{Running: 100}},
	}}

	assert.Equal(t, Status{Backlog: 1, Running: 3, PoolCapacity: 7, MaxThreads: 10, RequestsCount: 15}, Stats{ClusterStats: cs}.Totals())
	assert.Equal(t, Status{Running: 4}, Stats{Status: &Status{Running: 4}}.Totals())
	assert.Equal(t, Status{}, Stats{}.Totals())
}
