package logger

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the fiber Locals key holding the request id.
const RequestIDKey = "request_id"

// New creates a new zap logger based on the configuration.
func New(cfg *Config) (*zap.Logger, error) {
	var config zap.Config

	if cfg.Level == "debug" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		if cfg.Level != "" {
			level, err := zapcore.ParseLevel(cfg.Level)
			if err != nil {
				return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
			}
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	// Set format based on configuration
	if cfg.Format == "console" {
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.DisableStacktrace = true
	} else {
		config.Encoding = "json"
	}

	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "message"

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithRequestID returns a logger with the request_id field set from the Fiber context.
func WithRequestID(l *zap.Logger, c *fiber.Ctx) *zap.Logger {
	rid := c.Locals(RequestIDKey)
	if str, ok := rid.(string); ok && str != "" {
		return l.With(zap.String("request_id", str))
	}
	return l
}

// ForWorker returns a logger tagged with the worker index and phase.
func ForWorker(l *zap.Logger, index, phase int) *zap.Logger {
	return l.With(zap.Int("worker", index), zap.Int("phase", phase))
}
