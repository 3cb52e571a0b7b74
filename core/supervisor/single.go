package supervisor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// generation is one in-process serving cycle in single mode.
type generation struct {
	cancel context.CancelFunc
	errCh  chan error
}

func (s *Supervisor) serveGeneration(ctx context.Context) (*generation, error) {
	ln, err := DupListener(s.opts.Listener)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithCancel(ctx)
	g := &generation{cancel: cancel, errCh: make(chan error, 1)}
	go func() {
		g.errCh <- s.opts.App.Serve(genCtx, ln, func() {})
	}()
	return g, nil
}

func (g *generation) stop() error {
	g.cancel()
	return <-g.errCh
}

func (s *Supervisor) runSingle(ctx context.Context) error {
	s.log.Info("Starting in single mode")
	if err := s.opts.App.Preload(ctx); err != nil {
		return fmt.Errorf("preload failed: %w", err)
	}

	gen, err := s.serveGeneration(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.recordPool(EventStop, s.currentPhase())
			return gen.stop()
		case err := <-gen.errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case cmd := <-s.commands:
			switch cmd.kind {
			case cmdRestart:
				next, err := s.restartSingle(ctx, gen)
				if next != nil {
					gen = next
				}
				cmd.reply <- err
				if next == nil {
					return err
				}
			case cmdPhasedRestart:
				cmd.reply <- ErrSingleMode
			case cmdStop:
				cmd.reply <- nil
				s.recordPool(EventStop, s.currentPhase())
				return gen.stop()
			case cmdHalt:
				cmd.reply <- nil
				s.recordPool(EventStop, s.currentPhase())
				gen.cancel()
				return nil
			}
		}
	}
}

// restartSingle stops serving, reloads the application and serves again on
// the same socket. A nil generation means serving could not resume.
func (s *Supervisor) restartSingle(ctx context.Context, gen *generation) (*generation, error) {
	s.mu.Lock()
	s.phase++
	phase := s.phase
	s.mu.Unlock()

	s.log.Info("Restarting in-process server", zap.Int("phase", phase))
	s.recordPool(EventRestart, phase)

	if err := gen.stop(); err != nil {
		s.log.Warn("Server stopped with error", zap.Error(err))
	}
	if err := s.opts.App.Preload(ctx); err != nil {
		return nil, fmt.Errorf("reload failed: %w", err)
	}
	return s.serveGeneration(ctx)
}

func (s *Supervisor) currentPhase() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}
