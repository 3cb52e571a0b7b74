// Package middleware contains HTTP middleware for the Fiber applications.
//
// # Components
//
//   - auth: enforces the control endpoint token policy (token or no_token).
//   - requestid: assigns every request an id, exposed to handlers through
//     fiber Locals and echoed in the X-Request-ID response header.
//
// requestid is installed by core/server on every app; auth is installed by
// feature/control.
package middleware
