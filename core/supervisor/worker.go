package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"prefork/core/logger"

	"go.uber.org/zap"
)

// RunWorker is the body of a worker process: optionally preload, serve ln,
// report booted once the app accepts, then check in every env.CheckinInterval
// until ctx ends or the supervisor stops reading check-ins.
func RunWorker(ctx context.Context, env WorkerEnv, app App, ln net.Listener, report io.Writer, log *zap.Logger) error {
	log = logger.ForWorker(log, env.Index, env.Phase)

	if !env.Preloaded {
		log.Info("Loading application")
		if err := app.Preload(ctx); err != nil {
			return fmt.Errorf("preload failed: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	ready := make(chan struct{})
	var once sync.Once
	go func() {
		serveErr <- app.Serve(ctx, ln, func() { once.Do(func() { close(ready) }) })
	}()

	select {
	case <-ready:
	case err := <-serveErr:
		if err == nil {
			err = errors.New("server stopped")
		}
		return fmt.Errorf("worker %d failed to boot: %w", env.Index, err)
	case <-ctx.Done():
		return <-serveErr
	}

	reporter := NewReporter(report)
	pid := os.Getpid()

	if err := reporter.Send(Checkin{Type: CheckinBooted, Pid: pid, Status: app.Status()}); err != nil {
		cancel()
		<-serveErr
		return err
	}
	log.Info("Worker booted", zap.Int("pid", pid))

	interval := env.CheckinInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("worker %d failed: %w", env.Index, err)
			}
			return nil
		case <-ticker.C:
			if err := reporter.Send(Checkin{Type: CheckinStatus, Pid: pid, Status: app.Status()}); err != nil {
				log.Warn("Supervisor is gone, shutting down", zap.Error(err))
				cancel()
				<-serveErr
				return err
			}
		case <-ctx.Done():
			log.Info("Worker shutting down")
			return <-serveErr
		}
	}
}
