package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"prefork/core/logger"
	"prefork/core/supervisor"
	"prefork/feature/app"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// workerCmd is the entry point of worker processes spawned by start.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Run a single worker (spawned by start)",
	Hidden: true,
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

		env, err := supervisor.ParseWorkerEnv(os.Getenv)
		if err != nil {
			return err
		}
		if tag := env.Settings.Tag(); tag != "" {
			logg = logg.With(zap.String("tag", tag))
		}

		ln, err := supervisor.InheritedListener()
		if err != nil {
			return err
		}
		defer ln.Close()

		pipe, err := supervisor.InheritedCheckinPipe()
		if err != nil {
			return err
		}
		defer pipe.Close()

		responder := app.New(env.Settings, cfg.Server, logg, app.Identity{
			Worker: true,
			Index:  env.Index,
			Phase:  env.Phase,
		})
		if env.Preloaded {
			responder.MarkLoaded()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return supervisor.RunWorker(ctx, env, responder, ln, pipe, logg)
	},
}

func init() {
	RootCmd.AddCommand(workerCmd)
}
