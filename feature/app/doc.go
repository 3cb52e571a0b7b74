// Package app is the built-in responder served by workers.
//
// It exists so that the supervisor, control and metrics surfaces have real
// traffic to count. Request concurrency is bounded by the `threads`
// directive through a weighted semaphore: requests holding a slot are
// "running", requests waiting for one are the "backlog".
//
// # HTTP Endpoints
//
//   - GET /        : process identity (pid, worker index, phase, environment)
//   - GET /healthz : liveness
//   - GET /sleep   : holds a slot for ?ms=N milliseconds (capped at 10s)
package app
