// Package database opens the optional event journal database.
//
// It wraps GORM to configure MySQL or SQLite connections from the
// application's configuration. The journal is optional: callers log a
// warning and carry on when Connect fails.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns read a table's columns with the
// dialect's own introspection (SHOW COLUMNS or PRAGMA table_info). The
// `check` command uses them to verify the journal table.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Warn("Journal disabled", zap.Error(err))
//	}
package database
