package proc

import (
	"time"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Record is one process at one instant. Identity is (PID, StartTime).
type Record struct {
	PID       int
	StartTime uint64 // clock ticks after boot
	Command   string
	State     byte
	PPID      int
	Threads   int
	CPUTicks  uint64 // cumulative utime+stime
	RSS       types.Bytes
	Cgroup    string // empty unless WithCgroups
	SampledAt time.Time
}

// Skipped counts processes left out of a Snapshot.
type Skipped struct {
	Gone      int // exited between listing and reading
	Denied    int // permission denied
	Malformed int // unparsable stat
}

func (s Skipped) Total() int { return s.Gone + s.Denied + s.Malformed }

// Snapshot is the result of a single Read.
type Snapshot struct {
	At      time.Time
	Records []Record // sorted by PID
	Skipped Skipped
}
