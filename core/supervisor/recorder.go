package supervisor

import (
	"context"
	"time"
)

// Lifecycle event kinds.
const (
	EventBoot          = "boot"
	EventBooted        = "booted"
	EventExit          = "exit"
	EventTimeout       = "timeout"
	EventRestart       = "restart"
	EventPhasedRestart = "phased_restart"
	EventStop          = "stop"
)

// Event is a worker lifecycle event.
type Event struct {
	Kind   string
	Index  int
	Phase  int
	Pid    int
	Detail string
	At     time.Time
}

// Recorder persists lifecycle events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) error { return nil }
