// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments (development vs production)
// and integrates with the Fiber web framework.
//
// # Context Awareness
//
// The WithRequestID helper extracts the request id set by the requestid middleware from a
// Fiber context and attaches it to the log entry. ForWorker tags entries emitted by (or about)
// a worker process with its index and phase.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json or console
//
// # Usage
//
//	log, _ := logger.New(&cfg.Log)
//	log.Info("Supervisor started")
//
//	// In a request handler:
//	l := logger.WithRequestID(log, c)
//	l.Error("Command failed", zap.Error(err))
package logger
