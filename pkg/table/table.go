// Package table keeps the live process table: the last two raw records per
// process instance and the rates derived from them.
//
// Table is owned by a single writer (the sampler). Readers get a View, an
// immutable copy taken after a merge completes.
package table

import (
	"fmt"
	"sort"
	"time"

	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/system/proc"
	"github.com/ja7ad/procwatch/pkg/system/util"
	"github.com/ja7ad/procwatch/pkg/types"
)

// Identity tells apart process instances. A PID alone is reused over time;
// the kernel start time is not.
type Identity struct {
	PID       int
	StartTime uint64
}

func IdentityOf(r proc.Record) Identity {
	return Identity{PID: r.PID, StartTime: r.StartTime}
}

func (id Identity) String() string { return fmt.Sprintf("%d@%d", id.PID, id.StartTime) }

// Entry is one row: a two-slot history plus derived metrics.
type Entry struct {
	Identity

	Current     proc.Record
	Previous    proc.Record // valid only if HasPrevious
	HasPrevious bool

	// CPUPercent is 100 per fully used core. HasCPU is false on the first
	// observation of an identity, never a synthetic zero.
	CPUPercent float64
	HasCPU     bool

	MemoryBytes   types.Bytes
	MemoryTrend   types.BytesDelta // vs Previous; zero on first observation
	MemoryPercent float64          // of host total; zero if unknown
}

// CPU returns the CPU percentage and whether it is defined.
func (e Entry) CPU() (float64, bool) { return e.CPUPercent, e.HasCPU }

// Command is the current command name.
func (e Entry) Command() string { return e.Current.Command }

// WindowStart is the start of the interval the current metrics describe:
// the previous sample time, or the current one for a first observation.
func (e Entry) WindowStart() time.Time {
	if e.HasPrevious {
		return e.Previous.SampledAt
	}
	return e.Current.SampledAt
}

// Table maps identities to entries. Not safe for concurrent use.
type Table struct {
	ticksPerSec float64
	maxCPU      float64
	memTotal    types.Bytes

	entries    map[Identity]*Entry
	lastSample time.Time
}

// New builds an empty table using the host's clock tick rate, core count
// (CPU percentages are clamped to [0, 100×cores]) and memory total.
func New(info host.Info) *Table {
	ticks := info.ClockTicks
	if ticks <= 0 {
		ticks = host.ClockTicks()
	}
	return &Table{
		ticksPerSec: float64(ticks),
		maxCPU:      info.MaxCPUPercent(),
		memTotal:    info.MemTotal,
		entries:     make(map[Identity]*Entry),
	}
}

func (t *Table) Len() int { return len(t.entries) }

// LastSample is the timestamp of the most recent merge.
func (t *Table) LastSample() time.Time { return t.lastSample }

// Merge folds a snapshot taken at `at` into the table. Every record is
// restamped with `at` so all current records share the table's sample
// time. Identities missing from records are evicted and returned (sorted by
// PID) so their alert state can be cleared.
func (t *Table) Merge(records []proc.Record, at time.Time) []Entry {
	seen := make(map[Identity]struct{}, len(records))

	for _, rec := range records {
		rec.SampledAt = at
		id := IdentityOf(rec)

		e, ok := t.entries[id]
		_, dup := seen[id]
		seen[id] = struct{}{}
		switch {
		case !ok:
			t.entries[id] = t.newEntry(id, rec)
		case dup:
			// same identity twice in one snapshot: keep the latest record
			e.Current = rec
			t.derive(e)
		default:
			e.Previous = e.Current
			e.HasPrevious = true
			e.Current = rec
			t.derive(e)
		}
	}

	var removed []Entry
	for id, e := range t.entries {
		if _, ok := seen[id]; ok {
			continue
		}
		removed = append(removed, *e)
		delete(t.entries, id)
	}
	sortEntries(removed)

	t.lastSample = at
	return removed
}

func (t *Table) newEntry(id Identity, rec proc.Record) *Entry {
	return &Entry{
		Identity:      id,
		Current:       rec,
		MemoryBytes:   rec.RSS,
		MemoryPercent: t.memPercent(rec.RSS),
	}
}

func (t *Table) derive(e *Entry) {
	e.MemoryBytes = e.Current.RSS
	e.MemoryPercent = t.memPercent(e.Current.RSS)
	if !e.HasPrevious {
		return
	}
	e.MemoryTrend = types.Delta(e.Current.RSS, e.Previous.RSS)

	ticks := util.DeltaU64(e.Current.CPUTicks, e.Previous.CPUTicks)
	elapsed := e.Current.SampledAt.Sub(e.Previous.SampledAt).Seconds()
	cpuSec := float64(ticks) / t.ticksPerSec
	e.CPUPercent = util.Clamp(100*util.SafeDiv(cpuSec, elapsed), 0, t.maxCPU)
	e.HasCPU = true
}

func (t *Table) memPercent(b types.Bytes) float64 {
	if t.memTotal == 0 {
		return 0
	}
	return util.Clamp(100*float64(b)/float64(t.memTotal), 0, 100)
}

// View returns an immutable copy of the current table.
func (t *Table) View() *View {
	entries := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, *e)
	}
	return newView(t.lastSample, entries)
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].PID != es[j].PID {
			return es[i].PID < es[j].PID
		}
		return es[i].StartTime < es[j].StartTime
	})
}
