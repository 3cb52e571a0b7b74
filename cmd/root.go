package cmd

import (
	"fmt"
	"os"

	"prefork/core/config"
	"prefork/core/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "prefork",
	Short: "Pre-forking HTTP server supervisor",
	Long: `prefork loads a puma-style directive file, binds one listening socket and
supervises a pool of worker processes sharing it. A control app and a
Prometheus metrics endpoint can be enabled from the same file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format at debug level gives readable ISO8601 timestamps for CLI errors
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

// loadConfig loads process configuration with the persistent flags applied.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	cfg, err := config.LoadConfig(".", map[string]*pflag.Flag{
		"supervisor.config_file": flags.Lookup("config"),
		"log.level":              flags.Lookup("log-level"),
		"log.format":             flags.Lookup("log-format"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "C", "config/puma.rb", "directive file")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
}
