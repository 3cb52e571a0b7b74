// Package supervisor runs the worker pool described by a ServerSettings.
//
// # Cluster mode
//
// With workers > 0 the parent binds the primary socket once and re-executes
// its own binary (the hidden `worker` command) per worker. Each worker gets
// the socket on fd 3 and a check-in pipe on fd 4, over which it writes one
// JSON line on boot and then one every check-in interval:
//
//	{"type":"status","pid":4242,"at":"...","status":{"backlog":0,"running":1,"pool_capacity":4,"max_threads":5,"requests_count":17}}
//
// The Run goroutine owns the pool. Workers move through
//
//	booting -> booted -> stopping -> stopped
//	booting | booted -> failed
//
// A worker that does not boot within worker_boot_timeout, or stops checking
// in for worker_timeout, is killed and replaced. Crashed workers are
// respawned after RespawnDelay.
//
// Restart stops every worker and spawns a new phase. PhasedRestart replaces
// workers one at a time, waiting for each replacement to boot; workers of an
// older phase are reported as old_workers.
//
// # Single mode
//
// With workers = 0 the parent serves the App itself. Restart reloads the App
// and resumes serving on the same socket; PhasedRestart returns ErrSingleMode.
//
// # Control
//
// Supervisor implements Controller. Commands are delivered to the Run
// goroutine and fail with ErrNotRunning once Run has returned.
package supervisor
