package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"prefork/core/settings"

	"go.uber.org/zap"
)

// Options wires a Supervisor.
type Options struct {
	Settings *settings.ServerSettings
	Config   Config
	// Spawner starts workers; required in cluster mode.
	Spawner Spawner
	// App is preloaded in the parent (preload_app!) and served in single mode.
	App App
	// Listener is the primary socket; required in single mode.
	Listener net.Listener
	Logger   *zap.Logger
	Recorder Recorder
}

const (
	journalBuffer = 256
	recordTimeout = 2 * time.Second
)

// Supervisor owns the worker pool. All pool mutations happen on the Run
// goroutine; mu only guards reads from Stats.
type Supervisor struct {
	opts     Options
	cfg      Config
	log      *zap.Logger
	snapshot string

	commands chan command
	events   chan event
	journal  chan Event
	done     chan struct{}
	runOnce  sync.Once

	mu        sync.RWMutex
	startedAt time.Time
	phase     int
	slots     []*worker
	phasing   bool
	stopping  bool
}

type worker struct {
	index         int
	phase         int
	proc          Process
	state         WorkerState
	startedAt     time.Time
	lastCheckin   time.Time
	lastStatus    Status
	stopRequested time.Time
	exited        bool
	killed        bool
}

func (w *worker) transition(next WorkerState) error {
	if w.state == next {
		return nil
	}
	if !allowedTransition(w.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.state, next)
	}
	w.state = next
	return nil
}

func (w *worker) live() bool {
	return w != nil && !w.exited
}

type event struct {
	worker  *worker
	checkin *Checkin
	exited  bool
	err     error
	respawn int
}

// New validates options and returns an idle Supervisor.
func New(opts Options) (*Supervisor, error) {
	if opts.Settings == nil {
		return nil, errors.New("supervisor: settings are required")
	}
	if opts.Settings.ClusterMode() && opts.Spawner == nil {
		return nil, errors.New("supervisor: cluster mode requires a spawner")
	}
	if !opts.Settings.ClusterMode() && (opts.App == nil || opts.Listener == nil) {
		return nil, errors.New("supervisor: single mode requires an app and a listener")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}

	cfg := opts.Config.withDefaults()
	if opts.Settings.ClusterMode() && cfg.CheckinInterval >= opts.Settings.WorkerTimeout() {
		return nil, fmt.Errorf("supervisor: worker_timeout (%s) must exceed the check-in interval (%s)",
			opts.Settings.WorkerTimeout(), cfg.CheckinInterval)
	}

	snap := opts.Settings.Snapshot()
	snap.ControlToken = ""
	encoded, err := snap.Encode()
	if err != nil {
		return nil, err
	}

	return &Supervisor{
		opts:     opts,
		cfg:      cfg,
		log:      opts.Logger,
		snapshot: encoded,
		commands: make(chan command),
		events:   make(chan event, 64),
		journal:  make(chan Event, journalBuffer),
		done:     make(chan struct{}),
	}, nil
}

// Run supervises until ctx is cancelled or a stop/halt command arrives.
// It may be called once.
func (s *Supervisor) Run(ctx context.Context) error {
	err := errors.New("supervisor: already started")
	s.runOnce.Do(func() {
		defer close(s.done)

		drained := make(chan struct{})
		go s.drainJournal(drained)
		defer s.flushJournal(drained)

		s.mu.Lock()
		s.startedAt = time.Now()
		s.mu.Unlock()

		if s.opts.Settings.ClusterMode() {
			err = s.runCluster(ctx)
		} else {
			err = s.runSingle(ctx)
		}
	})
	return err
}

// Done is closed when Run returns.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) runCluster(ctx context.Context) error {
	st := s.opts.Settings

	if st.PreloadApp() && s.opts.App != nil {
		s.log.Info("Preloading application")
		if err := s.opts.App.Preload(ctx); err != nil {
			return fmt.Errorf("preload failed: %w", err)
		}
	}

	s.mu.Lock()
	s.slots = make([]*worker, st.WorkerCount())
	s.mu.Unlock()

	s.log.Info("Starting workers", zap.Int("workers", st.WorkerCount()), zap.Bool("preload_app", st.PreloadApp()))
	for i := 0; i < st.WorkerCount(); i++ {
		s.spawn(ctx, i)
	}

	ticker := time.NewTicker(s.cfg.TimeoutCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.shutdown(false)
		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdRestart:
				cmd.reply <- s.restart()
			case cmdPhasedRestart:
				cmd.reply <- s.phasedRestart()
			case cmdStop:
				cmd.reply <- nil
				return s.shutdown(false)
			case cmdHalt:
				cmd.reply <- nil
				return s.shutdown(true)
			}
		case ev := <-s.events:
			s.handle(ctx, ev)
		case <-ticker.C:
			s.checkTimeouts()
		}
	}
}

func (s *Supervisor) spawn(ctx context.Context, index int) {
	s.mu.RLock()
	phase := s.phase
	s.mu.RUnlock()

	spec := WorkerSpec{
		Index:           index,
		Phase:           phase,
		Preloaded:       s.opts.Settings.PreloadApp(),
		Settings:        s.snapshot,
		CheckinInterval: s.cfg.CheckinInterval,
	}

	proc, err := s.opts.Spawner.Spawn(ctx, spec)
	if err != nil {
		s.log.Error("Failed to spawn worker", zap.Int("worker", index), zap.Error(err))
		s.scheduleRespawn(index)
		return
	}

	now := time.Now()
	w := &worker{
		index:       index,
		phase:       phase,
		proc:        proc,
		state:       StateBooting,
		startedAt:   now,
		lastCheckin: now,
	}

	s.mu.Lock()
	s.slots[index] = w
	s.mu.Unlock()

	s.log.Info("Worker spawned", zap.Int("worker", index), zap.Int("phase", phase), zap.Int("pid", proc.Pid()))
	s.record(EventBoot, w, "")

	go s.watch(w)
}

func (s *Supervisor) watch(w *worker) {
	go func() {
		for c := range w.proc.Checkins() {
			if !s.emit(event{worker: w, checkin: &c}) {
				return
			}
		}
	}()

	err := w.proc.Wait()
	s.emit(event{worker: w, exited: true, err: err})
}

func (s *Supervisor) emit(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Supervisor) scheduleRespawn(index int) {
	time.AfterFunc(s.cfg.RespawnDelay, func() {
		s.emit(event{respawn: index + 1})
	})
}

func (s *Supervisor) handle(ctx context.Context, ev event) {
	switch {
	case ev.checkin != nil:
		s.handleCheckin(ev.worker, *ev.checkin)
	case ev.exited:
		s.handleExit(ctx, ev.worker, ev.err)
	case ev.respawn > 0:
		index := ev.respawn - 1
		s.mu.RLock()
		cur := s.slots[index]
		stopping := s.stopping
		s.mu.RUnlock()
		if !stopping && !cur.live() {
			s.spawn(ctx, index)
		}
	}
}

func (s *Supervisor) handleCheckin(w *worker, c Checkin) {
	s.mu.Lock()
	if w.exited {
		s.mu.Unlock()
		return
	}
	w.lastCheckin = time.Now()
	w.lastStatus = c.Status
	booted := false
	if w.state == StateBooting {
		booted = w.transition(StateBooted) == nil
	}
	phasing := s.phasing
	s.mu.Unlock()

	if !booted {
		return
	}
	s.log.Info("Worker booted", zap.Int("worker", w.index), zap.Int("phase", w.phase), zap.Int("pid", w.proc.Pid()))
	s.record(EventBooted, w, "")
	if phasing {
		s.advancePhase()
	}
}

func (s *Supervisor) handleExit(ctx context.Context, w *worker, err error) {
	s.mu.Lock()
	w.exited = true
	switch w.state {
	case StateStopping:
		_ = w.transition(StateStopped)
	case StateBooting, StateBooted:
		_ = w.transition(StateFailed)
	}
	intentional := w.state == StateStopped
	current := s.slots[w.index] == w
	stopping := s.stopping
	phasing := s.phasing
	s.mu.Unlock()

	detail := "exited"
	if err != nil {
		detail = err.Error()
	}
	if intentional {
		s.log.Info("Worker stopped", zap.Int("worker", w.index), zap.Int("pid", w.proc.Pid()))
	} else {
		s.log.Warn("Worker exited unexpectedly", zap.Int("worker", w.index), zap.Int("pid", w.proc.Pid()), zap.String("reason", detail))
	}
	s.record(EventExit, w, detail)

	if stopping || !current {
		return
	}
	if intentional {
		s.spawn(ctx, w.index)
		return
	}
	s.scheduleRespawn(w.index)
	if phasing {
		s.advancePhase()
	}
}

// stopWorker asks w to stop gracefully.
func (s *Supervisor) stopWorker(w *worker) {
	s.mu.Lock()
	if w.exited || w.transition(StateStopping) != nil {
		s.mu.Unlock()
		return
	}
	w.stopRequested = time.Now()
	s.mu.Unlock()

	if err := w.proc.Signal(syscall.SIGTERM); err != nil {
		s.log.Warn("Failed to signal worker, killing", zap.Int("worker", w.index), zap.Error(err))
		s.killWorker(w)
	}
}

func (s *Supervisor) killWorker(w *worker) {
	s.mu.Lock()
	if w.exited || w.killed {
		s.mu.Unlock()
		return
	}
	w.killed = true
	s.mu.Unlock()

	if err := w.proc.Kill(); err != nil {
		s.log.Warn("Failed to kill worker", zap.Int("worker", w.index), zap.Error(err))
	}
}

func (s *Supervisor) liveWorkers() []*worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*worker
	for _, w := range s.slots {
		if w.live() {
			out = append(out, w)
		}
	}
	return out
}

func (s *Supervisor) restart() error {
	s.mu.Lock()
	s.phase++
	s.phasing = false
	phase := s.phase
	s.mu.Unlock()

	s.log.Info("Restarting all workers", zap.Int("phase", phase))
	s.recordPool(EventRestart, phase)

	for _, w := range s.liveWorkers() {
		s.stopWorker(w)
	}
	return nil
}

func (s *Supervisor) phasedRestart() error {
	s.mu.Lock()
	if s.phasing {
		s.mu.Unlock()
		return ErrRestartInProgress
	}
	s.phase++
	s.phasing = true
	phase := s.phase
	s.mu.Unlock()

	s.log.Info("Starting phased restart", zap.Int("phase", phase))
	s.recordPool(EventPhasedRestart, phase)
	s.advancePhase()
	return nil
}

// advancePhase stops the next old worker once no replacement is pending.
func (s *Supervisor) advancePhase() {
	s.mu.Lock()
	var target *worker
	for _, w := range s.slots {
		if !w.live() {
			continue
		}
		if w.state == StateStopping || (w.phase == s.phase && w.state == StateBooting) {
			s.mu.Unlock()
			return
		}
		if target == nil && w.phase < s.phase && w.state == StateBooted {
			target = w
		}
	}
	pending := false
	for _, w := range s.slots {
		if w.live() && w.phase < s.phase {
			pending = true
		}
	}
	if target == nil && !pending {
		s.phasing = false
		phase := s.phase
		s.mu.Unlock()
		s.log.Info("Phased restart complete", zap.Int("phase", phase))
		return
	}
	s.mu.Unlock()

	if target != nil {
		s.log.Info("Phasing out worker", zap.Int("worker", target.index), zap.Int("phase", target.phase))
		s.stopWorker(target)
	}
}

func (s *Supervisor) checkTimeouts() {
	now := time.Now()
	bootTimeout := s.opts.Settings.WorkerBootTimeout()
	checkinTimeout := s.opts.Settings.WorkerTimeout()
	shutdownTimeout := s.opts.Settings.WorkerShutdownTimeout()

	type expired struct {
		w      *worker
		reason string
	}
	var kill []expired

	s.mu.Lock()
	for _, w := range s.slots {
		if !w.live() || w.killed {
			continue
		}
		switch w.state {
		case StateBooting:
			if now.Sub(w.startedAt) > bootTimeout {
				_ = w.transition(StateFailed)
				kill = append(kill, expired{w, fmt.Sprintf("did not boot within %s", bootTimeout)})
			}
		case StateBooted:
			if now.Sub(w.lastCheckin) > checkinTimeout {
				_ = w.transition(StateFailed)
				kill = append(kill, expired{w, fmt.Sprintf("did not check in within %s", checkinTimeout)})
			}
		case StateStopping:
			if now.Sub(w.stopRequested) > shutdownTimeout {
				kill = append(kill, expired{w, fmt.Sprintf("did not stop within %s", shutdownTimeout)})
			}
		}
	}
	s.mu.Unlock()

	for _, k := range kill {
		s.log.Warn("Worker timed out, killing", zap.Int("worker", k.w.index), zap.Int("pid", k.w.proc.Pid()), zap.String("reason", k.reason))
		s.record(EventTimeout, k.w, k.reason)
		s.killWorker(k.w)
	}
}

func (s *Supervisor) shutdown(halt bool) error {
	s.mu.Lock()
	s.stopping = true
	s.phasing = false
	phase := s.phase
	s.mu.Unlock()

	s.log.Info("Stopping workers", zap.Bool("halt", halt))
	s.recordPool(EventStop, phase)

	for _, w := range s.liveWorkers() {
		if halt {
			s.killWorker(w)
		} else {
			s.stopWorker(w)
		}
	}

	grace := time.NewTimer(s.opts.Settings.WorkerShutdownTimeout())
	defer grace.Stop()
	var hard <-chan time.Time

	for len(s.liveWorkers()) > 0 {
		select {
		case ev := <-s.events:
			if ev.exited {
				s.handleExit(context.Background(), ev.worker, ev.err)
			}
		case cmd := <-s.commands:
			cmd.reply <- ErrStopping
		case <-grace.C:
			s.log.Warn("Workers did not stop in time, killing")
			for _, w := range s.liveWorkers() {
				s.killWorker(w)
			}
			hard = time.After(5 * time.Second)
		case <-hard:
			return fmt.Errorf("supervisor: %d worker(s) did not exit", len(s.liveWorkers()))
		}
	}

	s.log.Info("All workers stopped")
	return nil
}

// Stats returns a point-in-time copy of the pool state.
func (s *Supervisor) Stats() Stats {
	if !s.opts.Settings.ClusterMode() {
		s.mu.RLock()
		startedAt := s.startedAt
		s.mu.RUnlock()

		st := s.opts.App.Status()
		return Stats{StartedAt: startedAt, Status: &st}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := &ClusterStats{
		Workers:      len(s.slots),
		Phase:        s.phase,
		WorkerStatus: make([]WorkerStatus, 0, len(s.slots)),
	}
	for _, w := range s.slots {
		if w == nil {
			continue
		}
		booted := w.state == StateBooted
		if booted {
			cs.BootedWorkers++
		}
		if w.live() && w.phase < s.phase {
			cs.OldWorkers++
		}
		cs.WorkerStatus = append(cs.WorkerStatus, WorkerStatus{
			StartedAt:   w.startedAt,
			Pid:         w.proc.Pid(),
			Index:       w.index,
			Phase:       w.phase,
			State:       w.state,
			Booted:      booted,
			LastCheckin: w.lastCheckin,
			LastStatus:  w.lastStatus,
		})
	}
	return Stats{StartedAt: s.startedAt, ClusterStats: cs}
}

func (s *Supervisor) record(kind string, w *worker, detail string) {
	s.write(Event{Kind: kind, Index: w.index, Phase: w.phase, Pid: w.proc.Pid(), Detail: detail})
}

func (s *Supervisor) recordPool(kind string, phase int) {
	s.write(Event{Kind: kind, Index: -1, Phase: phase})
}

// write queues ev for the journal goroutine. A slow Recorder never stalls the
// Run loop; events are dropped once the queue is full.
func (s *Supervisor) write(ev Event) {
	ev.At = time.Now()
	select {
	case s.journal <- ev:
	default:
		s.log.Warn("Event journal is behind, dropping event",
			zap.String("kind", ev.Kind), zap.Int("worker", ev.Index), zap.Int("phase", ev.Phase))
	}
}

func (s *Supervisor) drainJournal(drained chan<- struct{}) {
	defer close(drained)
	for ev := range s.journal {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := s.opts.Recorder.Record(ctx, ev); err != nil {
			s.log.Warn("Failed to record event", zap.String("kind", ev.Kind), zap.Error(err))
		}
		cancel()
	}
}

// flushJournal closes the queue and waits a bounded time for pending events.
func (s *Supervisor) flushJournal(drained <-chan struct{}) {
	close(s.journal)
	select {
	case <-drained:
	case <-time.After(recordTimeout):
		s.log.Warn("Event journal did not flush before shutdown", zap.Int("pending", len(s.journal)))
	}
}
