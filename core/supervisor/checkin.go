package supervisor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Checkin types sent by workers.
const (
	CheckinBooted = "booted"
	CheckinStatus = "status"
)

// Status is the request pool snapshot reported by a worker (or by the
// parent in single mode).
type Status struct {
	Backlog       int    `json:"backlog"`
	Running       int    `json:"running"`
	PoolCapacity  int    `json:"pool_capacity"`
	MaxThreads    int    `json:"max_threads"`
	RequestsCount uint64 `json:"requests_count"`
}

// Checkin is one line on the worker status pipe.
type Checkin struct {
	Type   string    `json:"type"`
	Pid    int       `json:"pid"`
	At     time.Time `json:"at"`
	Status Status    `json:"status"`
}

// Reporter writes newline-delimited JSON check-ins.
type Reporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewReporter(w io.Writer) *Reporter {
	return &Reporter{enc: json.NewEncoder(w)}
}

// Send writes c; an error usually means the supervisor went away.
func (r *Reporter) Send(c Checkin) error {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(c); err != nil {
		return fmt.Errorf("failed to send check-in: %w", err)
	}
	return nil
}

// ReadCheckins decodes check-ins from r into out until EOF.
// Malformed lines are skipped. out is not closed.
func ReadCheckins(r io.Reader, out chan<- Checkin) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var c Checkin
		if err := json.Unmarshal(sc.Bytes(), &c); err != nil {
			continue
		}
		if c.Type != CheckinBooted && c.Type != CheckinStatus {
			continue
		}
		out <- c
	}
	return sc.Err()
}
