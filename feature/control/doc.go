// Package control implements the control app: an HTTP endpoint that exposes
// supervisor stats and accepts lifecycle commands, and a small client for it.
//
// Routes, all GET:
//
//	/stats           pool or single-mode stats
//	/gc-stats        runtime memory statistics of the parent
//	/events?limit=N  recent lifecycle events (requires the journal)
//	/restart         full restart
//	/phased-restart  one-at-a-time restart (cluster mode only)
//	/stop            graceful stop
//	/halt            immediate stop
//
// Lifecycle routes are absent when the app is activated with data_only.
// In token mode every request must carry ?token=<token>.
package control
