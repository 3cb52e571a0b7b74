package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"prefork/core/settings"
)

// Inherited file descriptors in a worker process.
const (
	ListenerFD = 3
	CheckinFD  = 4
)

// Environment variables describing a worker.
const (
	EnvWorkerIndex     = "PREFORK_WORKER_INDEX"
	EnvWorkerPhase     = "PREFORK_WORKER_PHASE"
	EnvPreloaded       = "PREFORK_PRELOADED"
	EnvSettings        = "PREFORK_SETTINGS"
	EnvCheckinInterval = "PREFORK_CHECKIN_INTERVAL"
)

// WorkerSpec describes a worker to spawn.
type WorkerSpec struct {
	Index           int
	Phase           int
	Preloaded       bool
	Settings        string
	CheckinInterval time.Duration
}

// Environ renders the spec as environment entries.
func (w WorkerSpec) Environ() []string {
	preloaded := "0"
	if w.Preloaded {
		preloaded = "1"
	}
	return []string{
		EnvWorkerIndex + "=" + strconv.Itoa(w.Index),
		EnvWorkerPhase + "=" + strconv.Itoa(w.Phase),
		EnvPreloaded + "=" + preloaded,
		EnvSettings + "=" + w.Settings,
		EnvCheckinInterval + "=" + w.CheckinInterval.String(),
	}
}

// WorkerEnv is the worker-side view of a WorkerSpec.
type WorkerEnv struct {
	Index           int
	Phase           int
	Preloaded       bool
	Settings        *settings.ServerSettings
	CheckinInterval time.Duration
}

// ParseWorkerEnv reads a WorkerEnv through getenv (usually os.Getenv).
func ParseWorkerEnv(getenv func(string) string) (WorkerEnv, error) {
	var env WorkerEnv
	var err error

	if env.Index, err = strconv.Atoi(getenv(EnvWorkerIndex)); err != nil {
		return env, fmt.Errorf("invalid %s: %w", EnvWorkerIndex, err)
	}
	if env.Phase, err = strconv.Atoi(getenv(EnvWorkerPhase)); err != nil {
		return env, fmt.Errorf("invalid %s: %w", EnvWorkerPhase, err)
	}
	env.Preloaded = getenv(EnvPreloaded) == "1"

	raw := getenv(EnvSettings)
	if raw == "" {
		return env, fmt.Errorf("%s is not set", EnvSettings)
	}
	if env.Settings, err = settings.DecodeSnapshot(raw); err != nil {
		return env, err
	}

	if env.CheckinInterval, err = time.ParseDuration(getenv(EnvCheckinInterval)); err != nil {
		return env, fmt.Errorf("invalid %s: %w", EnvCheckinInterval, err)
	}
	if env.CheckinInterval <= 0 {
		return env, fmt.Errorf("%s must be positive", EnvCheckinInterval)
	}
	return env, nil
}

// Process is a running worker.
type Process interface {
	Pid() int
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
	// Checkins delivers decoded check-ins; it is closed when the pipe closes.
	Checkins() <-chan Checkin
}

// Spawner starts worker processes.
type Spawner interface {
	Spawn(ctx context.Context, spec WorkerSpec) (Process, error)
}

// ExecSpawner re-executes a binary as a worker, handing it the shared
// listener on fd 3 and the check-in pipe on fd 4.
type ExecSpawner struct {
	executable string
	args       []string
	env        []string
	lnFile     *os.File
}

// NewExecSpawner prepares a spawner sharing ln with every worker.
func NewExecSpawner(executable string, args []string, env []string, ln net.Listener) (*ExecSpawner, error) {
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable: %w", err)
		}
		executable = exe
	}

	f, err := listenerFile(ln)
	if err != nil {
		return nil, err
	}

	return &ExecSpawner{executable: executable, args: args, env: env, lnFile: f}, nil
}

func (e *ExecSpawner) Spawn(_ context.Context, spec WorkerSpec) (Process, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create check-in pipe: %w", err)
	}

	cmd := exec.Command(e.executable, e.args...)
	cmd.Env = append(append(os.Environ(), e.env...), spec.Environ()...)
	cmd.ExtraFiles = []*os.File{e.lnFile, w}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("failed to start worker %d: %w", spec.Index, err)
	}
	w.Close()

	p := &execProcess{cmd: cmd, checkins: make(chan Checkin, 16)}
	go func() {
		defer close(p.checkins)
		defer r.Close()
		_ = ReadCheckins(r, p.checkins)
	}()
	return p, nil
}

// Close releases the parent's copy of the listener descriptor.
func (e *ExecSpawner) Close() error {
	return e.lnFile.Close()
}

type execProcess struct {
	cmd      *exec.Cmd
	checkins chan Checkin
}

func (p *execProcess) Pid() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *execProcess) Kill() error                { return p.cmd.Process.Kill() }
func (p *execProcess) Wait() error                { return p.cmd.Wait() }
func (p *execProcess) Checkins() <-chan Checkin   { return p.checkins }
