package journal

import (
	"context"
	"errors"
	"fmt"

	"prefork/core/database"
	"prefork/core/supervisor"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ErrDisabled is returned when no database is configured.
var ErrDisabled = errors.New("event journal is disabled")

// Store records worker lifecycle events through gorm.
type Store struct {
	db *gorm.DB
}

var _ supervisor.Recorder = (*Store)(nil)

// New creates a store. A nil db yields a disabled store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Enabled reports whether a database is attached.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// Migrate creates or updates the events table.
func (s *Store) Migrate() error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := s.db.AutoMigrate(&WorkerEvent{}); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// Record implements supervisor.Recorder.
func (s *Store) Record(ctx context.Context, ev supervisor.Event) error {
	if !s.Enabled() {
		return nil
	}

	row := WorkerEvent{
		Kind:        ev.Kind,
		WorkerIndex: ev.Index,
		Phase:       ev.Phase,
		Pid:         ev.Pid,
		Detail:      truncate(ev.Detail, 255),
		CreatedAt:   ev.At,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", ev.Kind, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]WorkerEvent, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var events []WorkerEvent
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return events, nil
}

// Verify returns the journal columns missing from the database.
func (s *Store) Verify() ([]string, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	return database.MissingColumns(s.db, WorkerEvent{}.TableName(), Columns)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
