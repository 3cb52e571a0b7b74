package journal

import "time"

// WorkerEvent is a persisted worker lifecycle event.
type WorkerEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Kind        string    `gorm:"size:32;index" json:"kind"`
	WorkerIndex int       `json:"index"`
	Phase       int       `json:"phase"`
	Pid         int       `json:"pid"`
	Detail      string    `gorm:"size:255" json:"detail,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"at"`
}

// TableName overrides the table name used by WorkerEvent.
func (WorkerEvent) TableName() string {
	return "worker_events"
}

// Columns lists the columns the journal relies on.
var Columns = []string{"id", "kind", "worker_index", "phase", "pid", "detail", "created_at"}
