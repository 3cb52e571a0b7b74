package supervisor

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"syscall"
)

type fakeProcess struct {
	pid      int
	spec     WorkerSpec
	checkins chan Checkin
	exit     chan error

	mu         sync.Mutex
	signals    []os.Signal
	killed     bool
	finished   bool
	ignoreTerm bool
}

func newFakeProcess(pid int, spec WorkerSpec) *fakeProcess {
	return &fakeProcess{
		pid:      pid,
		spec:     spec,
		checkins: make(chan Checkin, 8),
		exit:     make(chan error, 1),
	}
}

func (p *fakeProcess) Pid() int                 { return p.pid }
func (p *fakeProcess) Wait() error              { return <-p.exit }
func (p *fakeProcess) Checkins() <-chan Checkin { return p.checkins }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	ignore := p.ignoreTerm
	p.mu.Unlock()

	if sig == syscall.SIGTERM && !ignore {
		p.finish(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(errors.New("signal: killed"))
	return nil
}

func (p *fakeProcess) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	close(p.checkins)
	p.exit <- err
}

func (p *fakeProcess) send(c Checkin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	c.Pid = p.pid
	p.checkins <- c
}

func (p *fakeProcess) boot() {
	p.send(Checkin{Type: CheckinBooted, Status: Status{PoolCapacity: 5, MaxThreads: 5}})
}

func (p *fakeProcess) terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.signals {
		if s == syscall.SIGTERM {
			return true
		}
	}
	return false
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type fakeSpawner struct {
	mu         sync.Mutex
	procs      []*fakeProcess
	autoBoot   bool
	ignoreTerm bool
	failures   int
}

func (s *fakeSpawner) Spawn(_ context.Context, spec WorkerSpec) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return nil, errors.New("spawn failed")
	}

	p := newFakeProcess(1000+len(s.procs), spec)
	p.ignoreTerm = s.ignoreTerm
	s.procs = append(s.procs, p)
	if s.autoBoot {
		p.boot()
	}
	return p, nil
}

func (s *fakeSpawner) setAutoBoot(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoBoot = v
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *fakeSpawner) proc(i int) *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[i]
}

func (s *fakeSpawner) all() []*fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeProcess(nil), s.procs...)
}

type fakeApp struct {
	mu       sync.Mutex
	preloads int
	serves   int
	status   Status
	serveErr error
}

func (a *fakeApp) Preload(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.preloads++
	return nil
}

func (a *fakeApp) Serve(ctx context.Context, ln net.Listener, ready func()) error {
	a.mu.Lock()
	a.serves++
	serveErr := a.serveErr
	a.mu.Unlock()

	if serveErr != nil {
		ln.Close()
		return serveErr
	}
	ready()
	<-ctx.Done()
	return ln.Close()
}

func (a *fakeApp) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *fakeApp) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.preloads, a.serves
}

type memoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *memoryRecorder) Record(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memoryRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *memoryRecorder) has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// blockingRecorder holds every Record call until unblock.
type blockingRecorder struct {
	release chan struct{}
	once    sync.Once

	mu sync.Mutex
	n  int
}

func (r *blockingRecorder) Record(ctx context.Context, _ Event) error {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()

	<-r.release
	return nil
}

func (r *blockingRecorder) unblock() {
	r.once.Do(func() { close(r.release) })
}

func (r *blockingRecorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}
