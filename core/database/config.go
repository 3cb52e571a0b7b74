package database

// Config holds configuration for the optional event journal database.
type Config struct {
	// Enabled turns the journal on.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Driver is the database driver (mysql, sqlite).
	Driver string `mapstructure:"driver" default:"sqlite"`
	// Host is the database host (mysql).
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port (mysql).
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user (mysql).
	User string `mapstructure:"user" default:"root"`
	// Password is the database password (mysql).
	Password string `mapstructure:"password" default:""`
	// Name is the database name for mysql, or the file path for sqlite.
	Name string `mapstructure:"name" default:"prefork.db"`
	// TimeoutSeconds bounds connection setup and I/O.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)
