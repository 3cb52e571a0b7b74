package database

import (
	"testing"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
)

func TestConnect(t *testing.T) {
	t.Run("Invalid Connection", func(t *testing.T) {
		cfg := Config{
			Driver:         DriverMySQL,
			Host:           "127.0.0.1",
			Port:           1, // Nothing listens here
			User:           "root",
			Password:       "wrongpassword",
			Name:           "prefork",
			TimeoutSeconds: 1,
		}

		db, err := Connect(cfg)
		assert.Error(t, err)
		assert.Nil(t, db)
	})

	t.Run("SQLite Memory", func(t *testing.T) {
		db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", db.Dialector.Name())
	})

	t.Run("Unknown Driver", func(t *testing.T) {
		db, err := Connect(Config{Driver: "postgres"})
		assert.ErrorContains(t, err, "unsupported database driver")
		assert.Nil(t, db)
	})
}

func TestDialector(t *testing.T) {
	tests := []struct {
		driver  string
		name    string
		wantErr bool
	}{
		{DriverMySQL, "mysql", false},
		{DriverSQLite, "sqlite", false},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Dialector(Config{Driver: tt.driver, Name: ":memory:"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, d.Name())
		})
	}
}

func TestDialector_MySQLCredentials(t *testing.T) {
	cfg := Config{
		Driver:         DriverMySQL,
		Host:           "db.internal",
		Port:           3307,
		User:           "journal",
		Password:       "p@ss/w%rd:#1",
		Name:           "prefork",
		TimeoutSeconds: 3,
	}

	d, err := Dialector(cfg)
	require.NoError(t, err)
	md, ok := d.(*mysql.Dialector)
	require.True(t, ok)

	parsed, err := mysqldrv.ParseDSN(md.Config.DSN)
	require.NoError(t, err)
	assert.Equal(t, "journal", parsed.User)
	assert.Equal(t, "p@ss/w%rd:#1", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3307", parsed.Addr)
	assert.Equal(t, "prefork", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, 3*time.Second, parsed.Timeout)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}
