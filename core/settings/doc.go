// Package settings turns directive files into a validated, immutable ServerSettings.
//
// # Loading
//
// Load (or Parse) reads directives through core/directive, applies them in source
// order and validates every value. Loading is all-or-nothing: either a complete
// *ServerSettings is returned, or an error whose elements are all *ConfigError,
// each naming the directive, its line and the violated constraint. Nothing is
// bound or spawned before loading succeeds.
//
// # Supported directives
//
//   - port <int>                      primary listen port (1..65535, default 9292)
//   - workers <int>                   worker processes (>= 0, 0 = single mode)
//   - preload_app! / preload_app <b>  load the application once in the parent
//   - activate_control_app <url>, {no_token: true | auth_token: "..." | data_only: true}
//   - plugin <name>                   enable a plugin ("metrics")
//   - metrics_url <url>               metrics bind (default tcp://0.0.0.0:9393)
//   - threads <min>, <max>            per-worker request concurrency (default 0, 5)
//   - worker_timeout <sec>            check-in timeout (default 60)
//   - worker_boot_timeout <sec>       boot timeout (default worker_timeout)
//   - worker_shutdown_timeout <sec>   graceful stop budget (default 30)
//   - environment <name>, tag <name>
//
// Every URL must use the tcp:// scheme.
//
// # Immutability
//
// ServerSettings has no exported fields; accessors return copies. Snapshot and
// FromSnapshot exist so that a read-only copy can be handed to worker processes.
package settings
