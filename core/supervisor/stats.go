package supervisor

import (
	"runtime"
	"time"
)

// Stats is the /stats payload. Exactly one of ClusterStats (workers > 0)
// and Status (single mode) is set; both are inlined in JSON.
type Stats struct {
	StartedAt time.Time `json:"started_at"`
	*ClusterStats
	*Status
}

// ClusterStats describes the worker pool.
type ClusterStats struct {
	Workers       int            `json:"workers"`
	Phase         int            `json:"phase"`
	BootedWorkers int            `json:"booted_workers"`
	OldWorkers    int            `json:"old_workers"`
	WorkerStatus  []WorkerStatus `json:"worker_status"`
}

// WorkerStatus describes one worker slot.
type WorkerStatus struct {
	StartedAt   time.Time   `json:"started_at"`
	Pid         int         `json:"pid"`
	Index       int         `json:"index"`
	Phase       int         `json:"phase"`
	State       WorkerState `json:"state"`
	Booted      bool        `json:"booted"`
	LastCheckin time.Time   `json:"last_checkin"`
	LastStatus  Status      `json:"last_status"`
}

// GCStats is the /gc-stats payload, read from the Go runtime.
type GCStats struct {
	Count        uint32 `json:"count"`
	HeapAlloc    uint64 `json:"heap_alloc"`
	HeapSys      uint64 `json:"heap_sys"`
	HeapObjects  uint64 `json:"heap_objects"`
	TotalAlloc   uint64 `json:"total_alloc"`
	Mallocs      uint64 `json:"mallocs"`
	Frees        uint64 `json:"frees"`
	PauseTotalNs uint64 `json:"pause_total_ns"`
	NextGC       uint64 `json:"next_gc"`
	Goroutines   int    `json:"goroutines"`
}

// ReadGCStats samples the current process.
func ReadGCStats() GCStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return GCStats{
		Count:        m.NumGC,
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		HeapObjects:  m.HeapObjects,
		TotalAlloc:   m.TotalAlloc,
		Mallocs:      m.Mallocs,
		Frees:        m.Frees,
		PauseTotalNs: m.PauseTotalNs,
		NextGC:       m.NextGC,
		Goroutines:   runtime.NumGoroutine(),
	}
}

// Aggregate sums the last reported status of every booted worker.
func (c *ClusterStats) Aggregate() Status {
	var total Status
	for _, w := range c.WorkerStatus {
		if !w.Booted {
			continue
		}
		total.Backlog += w.LastStatus.Backlog
		total.Running += w.LastStatus.Running
		total.PoolCapacity += w.LastStatus.PoolCapacity
		total.MaxThreads += w.LastStatus.MaxThreads
		total.RequestsCount += w.LastStatus.RequestsCount
	}
	return total
}

// Totals returns the request pool totals regardless of mode.
func (s Stats) Totals() Status {
	switch {
	case s.ClusterStats != nil:
		return s.ClusterStats.Aggregate()
	case s.Status != nil:
		return *s.Status
	default:
		return Status{}
	}
}
