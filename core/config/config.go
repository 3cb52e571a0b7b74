package config

import (
	"fmt"
	"reflect"
	"strings"

	"prefork/core/database"
	"prefork/core/logger"
	"prefork/core/server"
	"prefork/core/supervisor"
	"prefork/feature/exporter"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all process-level configuration. Server behaviour itself
// comes from the directive file named by Supervisor.ConfigFile.
type Config struct {
	// Supervisor holds configuration for the worker supervisor.
	Supervisor supervisor.Config `mapstructure:"supervisor"`
	// Server holds configuration shared by the HTTP endpoints.
	Server server.Config `mapstructure:"server"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Database holds configuration for the optional event journal.
	Database database.Config `mapstructure:"database"`
	// Exporter holds configuration for the standalone exporter.
	Exporter exporter.Config `mapstructure:"exporter"`
}

// LoadConfig loads configuration from defaults, the .env file in path,
// environment variables and finally command line flags. flags maps config
// keys (e.g. "supervisor.config_file") to the flags overriding them.
func LoadConfig(path string, flags map[string]*pflag.Flag) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. LOG_LEVEL -> log.level)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", key, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, field.Tag.Get("default"))
	}
}
