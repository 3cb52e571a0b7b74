// Package config provides process-level configuration for prefork.
//
// It uses Viper for loading configuration from defaults, an optional .env
// file, environment variables and command-line flags. The server itself
// (port, workers, control app, plugins) is configured by the directive file
// and loaded by package settings; this package only locates that file and
// configures everything around it.
//
// # Configuration Structure
//
//   - Supervisor: directive file path, worker executable, check-in and respawn timing
//   - Server: HTTP timeouts shared by the control, metrics and worker endpoints
//   - Log: logging level and format
//   - Database: optional event journal (mysql or sqlite)
//   - Exporter: the standalone exporter (bind address, control url, token)
//
// Environment variables map to keys by replacing dots with underscores,
// e.g. SUPERVISOR_CONFIG_FILE or LOG_LEVEL.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Supervisor.ConfigFile)
package config
