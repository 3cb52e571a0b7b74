package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"prefork/core/config"
	"prefork/core/logger"
	"prefork/feature/exporter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// exporterCmd polls a control app and serves Prometheus metrics.
var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Run a standalone Prometheus exporter for a control app",
	Long: `Polls /stats and /gc-stats of a control app every --interval and serves
them as puma_* metrics on --bind-address. Works against any puma-compatible
control app.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		cfg, err := config.LoadConfig(".", map[string]*pflag.Flag{
			"log.level":             flags.Lookup("log-level"),
			"log.format":            flags.Lookup("log-format"),
			"exporter.bind_address": flags.Lookup("bind-address"),
			"exporter.control_url":  flags.Lookup("control-url"),
			"exporter.auth_token":   flags.Lookup("auth-token"),
			"exporter.interval":     flags.Lookup("interval"),
		})
		if err != nil {
			return err
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			return err
		}
		defer logg.Sync()

		src, err := exporter.NewClientSource(cfg.Exporter)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		exp := exporter.New(cfg.Exporter, src, logg)
		if err := exp.Run(ctx, cfg.Server); err != nil {
			return err
		}
		logg.Info("Exporter stopped", zap.String("control_url", cfg.Exporter.ControlURL))
		return nil
	},
}

func init() {
	exporterCmd.Flags().StringP("bind-address", "b", "0.0.0.0:9235", "listen address for the metrics endpoint")
	exporterCmd.Flags().StringP("control-url", "u", "http://127.0.0.1:7353", "control app URL")
	exporterCmd.Flags().StringP("auth-token", "a", "", "control app token")
	exporterCmd.Flags().Duration("interval", 5*time.Second, "poll interval")
	RootCmd.AddCommand(exporterCmd)
}
