// Package host reports the static machine facts the sampler needs to turn
// kernel counters into rates: logical core count, total memory, clock ticks
// per second and page size.
package host

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v4/cpu"
	pshost "github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Info is a point-in-time description of the host. It is read once at
// startup; core hotplug during a session is not tracked.
type Info struct {
	Cores      int
	MemTotal   types.Bytes
	ClockTicks int
	PageSize   int

	// descriptive only
	Hostname string
	Kernel   string
}

// Detect gathers Info. Core count falls back to runtime.NumCPU and a
// missing memory total is left as zero (memory percent is then unknown).
func Detect() (Info, error) {
	info := Info{
		Cores:      runtime.NumCPU(),
		ClockTicks: ClockTicks(),
		PageSize:   PageSize(),
	}

	if n, err := cpu.Counts(true); err == nil && n > 0 {
		info.Cores = n
	}
	if hi, err := pshost.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.Kernel = hi.KernelVersion
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return info, fmt.Errorf("host: virtual memory: %w", err)
	}
	info.MemTotal = types.ToBytes(vm.Total)
	return info, nil
}

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100 (common default).
//
// Note: the authoritative source is sysconf(_SC_CLK_TCK), which needs cgo.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// PageSize returns the system memory page size in bytes.
// Like ClockTicks, it first checks an env override (PAGE_SIZE).
func PageSize() int {
	if ps := os.Getenv("PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// MaxCPUPercent is the upper bound of a per-process CPU percentage on a
// host with the given core count (100 per core).
func (i Info) MaxCPUPercent() float64 {
	if i.Cores <= 0 {
		return 100
	}
	return 100 * float64(i.Cores)
}
