package supervisor

import "errors"

// WorkerState is the lifecycle state of a worker as seen by the supervisor.
//
// booting  -> booted | stopping | failed
// booted   -> stopping | failed
// stopping -> stopped
//
// stopped and failed are terminal.
type WorkerState string

const (
	StateBooting  WorkerState = "booting"
	StateBooted   WorkerState = "booted"
	StateStopping WorkerState = "stopping"
	StateStopped  WorkerState = "stopped"
	StateFailed   WorkerState = "failed"
)

// ErrInvalidTransition is returned for an illegal worker state change.
var ErrInvalidTransition = errors.New("invalid worker state transition")

func allowedTransition(cur, next WorkerState) bool {
	switch cur {
	case StateBooting:
		return next == StateBooted || next == StateStopping || next == StateFailed
	case StateBooted:
		return next == StateStopping || next == StateFailed
	case StateStopping:
		return next == StateStopped
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s WorkerState) Terminal() bool {
	return s == StateStopped || s == StateFailed
}
