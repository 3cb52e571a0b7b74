package supervisor

import (
	"context"
	"errors"
)

var (
	// ErrNotRunning is returned for commands sent after the supervisor stopped.
	ErrNotRunning = errors.New("supervisor is not running")
	// ErrStopping is returned for commands received during shutdown.
	ErrStopping = errors.New("supervisor is stopping")
	// ErrSingleMode is returned for phased restarts without workers.
	ErrSingleMode = errors.New("phased restart requires workers")
	// ErrRestartInProgress is returned when a phased restart is already running.
	ErrRestartInProgress = errors.New("phased restart already in progress")
)

// Controller is the command surface used by the control endpoint, the
// metrics plugin and signal handlers.
type Controller interface {
	Stats() Stats
	GCStats() GCStats
	Restart(ctx context.Context) error
	PhasedRestart(ctx context.Context) error
	Stop(ctx context.Context) error
	Halt(ctx context.Context) error
}

type commandKind int

const (
	cmdRestart commandKind = iota
	cmdPhasedRestart
	cmdStop
	cmdHalt
)

type command struct {
	kind  commandKind
	reply chan error
}

func (s *Supervisor) send(ctx context.Context, kind commandKind) error {
	cmd := command{kind: kind, reply: make(chan error, 1)}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart replaces every worker with a new generation.
func (s *Supervisor) Restart(ctx context.Context) error { return s.send(ctx, cmdRestart) }

// PhasedRestart replaces workers one at a time.
func (s *Supervisor) PhasedRestart(ctx context.Context) error {
	return s.send(ctx, cmdPhasedRestart)
}

// Stop drains workers and makes Run return.
func (s *Supervisor) Stop(ctx context.Context) error { return s.send(ctx, cmdStop) }

// Halt kills workers immediately and makes Run return.
func (s *Supervisor) Halt(ctx context.Context) error { return s.send(ctx, cmdHalt) }

// GCStats samples the parent's runtime.
func (s *Supervisor) GCStats() GCStats { return ReadGCStats() }
