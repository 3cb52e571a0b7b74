package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"prefork/core/logger"
	"prefork/core/middleware/requestid"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// New creates a fiber app with the shared middleware stack: request ids,
// request logging and a JSON error handler.
func New(name string, cfg Config, log *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          ErrorHandler(log),
	})

	app.Use(requestid.New())
	if cfg.RequestLogging {
		app.Use(RequestLogger(log))
	}

	return app
}

// RequestLogger logs incoming requests with their request id.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		l := logger.WithRequestID(log, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	}
}

// ErrorHandler renders errors as {"error": "..."}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			logger.WithRequestID(log, c).Error("Unhandled error", zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}

// HostPort extracts host:port from a tcp:// URL.
func HostPort(u url.URL) (string, error) {
	if u.Scheme != "tcp" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if _, _, err := net.SplitHostPort(u.Host); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", u.Host, err)
	}
	return u.Host, nil
}

// Bind opens a TCP listener on addr.
func Bind(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return ln, nil
}

// Serve runs app on ln until ctx is cancelled, then shuts it down within
// cfg.ShutdownTimeout. A serve error other than a clean close is returned.
func Serve(ctx context.Context, app *fiber.App, ln net.Listener, cfg Config) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("server on %s failed: %w", ln.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		return fmt.Errorf("shutdown of %s failed: %w", ln.Addr(), err)
	}
	<-errCh
	return nil
}
