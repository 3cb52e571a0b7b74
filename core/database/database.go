package database

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the journal database.
// This is an optional connection, so callers should handle the error gracefully.
func Connect(cfg Config) (*gorm.DB, error) {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 5
	}

	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	// Suppress GORM logging for cleaner optional warnings in main logger
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// A single connection keeps :memory: databases shared and avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Dialector builds the gorm dialector for cfg.
func Dialector(cfg Config) (gorm.Dialector, error) {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 5
	}

	switch cfg.Driver {
	case DriverMySQL:
		return mysql.Open(mysqlDSN(cfg, time.Duration(timeout)*time.Second)), nil
	case DriverSQLite:
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// mysqlDSN lets the driver format the DSN; it does not decode
// percent-escapes, so credentials are passed through verbatim.
func mysqlDSN(cfg Config, timeout time.Duration) string {
	dc := mysqldrv.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Name
	dc.ParseTime = true
	dc.Loc = time.UTC
	dc.Timeout = timeout
	dc.ReadTimeout = timeout
	dc.WriteTimeout = timeout
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}
