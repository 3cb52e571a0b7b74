package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// MemoryReader reports the resident set size of a process.
type MemoryReader interface {
	ResidentMemory(ctx context.Context, pid int) (uint64, error)
}

// ProcessMemory reads RSS from the OS through gopsutil.
type ProcessMemory struct{}

func (ProcessMemory) ResidentMemory(ctx context.Context, pid int) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
