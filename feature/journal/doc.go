// Package journal persists worker lifecycle events.
//
// Store implements supervisor.Recorder on top of gorm, so the supervisor
// writes boot, booted, exit, timeout, restart, phased_restart and stop
// events as they happen. The control endpoint reads them back through
// Recent (GET /events).
//
// The journal is optional. A Store built with a nil *gorm.DB accepts every
// Record call and reports ErrDisabled on reads.
package journal
