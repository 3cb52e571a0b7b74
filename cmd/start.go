package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"prefork/core/config"
	"prefork/core/database"
	"prefork/core/loader"
	"prefork/core/logger"
	"prefork/core/server"
	"prefork/core/settings"
	"prefork/core/supervisor"
	"prefork/feature/app"
	"prefork/feature/control"
	"prefork/feature/journal"
	"prefork/feature/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server and its workers",
	Long: `Loads the directive file, binds the primary listener, then supervises the
worker pool (or serves in-process when workers is 0) together with the
control app and enabled plugins. SIGINT/SIGTERM drain and exit, SIGUSR2
restarts and SIGUSR1 runs a phased restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return err
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		st, err := settings.Load(cfg.Supervisor.ConfigFile)
		if err != nil {
			for _, ce := range settings.ConfigErrors(err) {
				logg.Error("Invalid configuration", zap.String("directive", ce.Directive), zap.Int("line", ce.Line), zap.String("reason", ce.Reason))
			}
			return err
		}
		if st.Tag() != "" {
			logg = logg.With(zap.String("tag", st.Tag()))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, st, logg)
	},
}

func run(ctx context.Context, cfg *config.Config, st *settings.ServerSettings, logg *zap.Logger) error {
	store := openJournal(cfg.Database, logg)

	ln, err := server.Bind(st.BindAddress())
	if err != nil {
		return err
	}
	defer ln.Close()

	opts := supervisor.Options{
		Settings: st,
		Config:   cfg.Supervisor,
		App:      app.New(st, cfg.Server, logg, app.Identity{}),
		Listener: ln,
		Logger:   logg,
	}
	var events control.EventSource
	if store.Enabled() {
		opts.Recorder = store
		events = store
	}
	if st.ClusterMode() {
		spawner, err := supervisor.NewExecSpawner(cfg.Supervisor.Executable, []string{"worker"}, nil, ln)
		if err != nil {
			return err
		}
		defer spawner.Close()
		opts.Spawner = spawner
	}

	sup, err := supervisor.New(opts)
	if err != nil {
		return err
	}

	var endpoint *control.Endpoint
	if st.ControlEnabled() {
		endpoint, err = control.Listen(st, sup, events, cfg.Server, logg.Named("control"))
		if err != nil {
			return err
		}
		if st.ControlAuth() == settings.AuthToken {
			logg.Info("Control app token", zap.String("token", st.ControlToken()))
		}
	}

	plugins := loader.NewManager()
	plugins.Register(metrics.New(nil))
	if err := plugins.Enable(st.Plugins()); err != nil {
		return err
	}
	if err := plugins.LoadAll(loader.Host{Settings: st, Controller: sup, Server: cfg.Server, Logger: logg}); err != nil {
		return err
	}

	logg.Info("Server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", st.WorkerCount()),
		zap.Bool("preload_app", st.PreloadApp()),
		zap.String("environment", st.Environment()),
	)

	g, gctx := errgroup.WithContext(ctx)
	// Endpoints and plugins stop when the supervisor returns.
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return sup.Run(gctx)
	})
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(runCtx) })
	}
	g.Go(func() error { return plugins.Run(runCtx) })
	g.Go(func() error {
		handleSignals(runCtx, sup, logg)
		return nil
	})

	err = g.Wait()
	logg.Info("Server stopped")
	return err
}

// openJournal connects the optional event journal. Failures are logged and
// leave the journal disabled.
func openJournal(cfg database.Config, logg *zap.Logger) *journal.Store {
	if !cfg.Enabled {
		return journal.New(nil)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logg.Warn("Optional database connection failed", zap.Error(err))
		return journal.New(nil)
	}

	store := journal.New(db)
	if err := store.Migrate(); err != nil {
		logg.Warn("Event journal migration failed", zap.Error(err))
		return journal.New(nil)
	}
	logg.Info("Event journal enabled", zap.String("driver", cfg.Driver))
	return store
}

func handleSignals(ctx context.Context, ctl supervisor.Controller, logg *zap.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			var err error
			switch sig {
			case syscall.SIGUSR2:
				logg.Info("Restart requested by signal")
				err = ctl.Restart(ctx)
			case syscall.SIGUSR1:
				logg.Info("Phased restart requested by signal")
				err = ctl.PhasedRestart(ctx)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				logg.Warn("Signal command rejected", zap.Stringer("signal", sig), zap.Error(err))
			}
		}
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
