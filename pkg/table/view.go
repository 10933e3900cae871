package table

import (
	"sort"
	"time"
)

// View is a point-in-time, read-only copy of a Table. It is safe to share
// between goroutines.
type View struct {
	at      time.Time
	entries []Entry // sorted by PID
	index   map[Identity]int
}

// EmptyView is what consumers see before the first publication.
func EmptyView() *View { return newView(time.Time{}, nil) }

func newView(at time.Time, entries []Entry) *View {
	sortEntries(entries)
	idx := make(map[Identity]int, len(entries))
	for i, e := range entries {
		idx[e.Identity] = i
	}
	return &View{at: at, entries: entries, index: idx}
}

func (v *View) SampledAt() time.Time { return v.at }

func (v *View) Len() int { return len(v.entries) }

// Entries returns a copy of all rows, sorted by PID.
func (v *View) Entries() []Entry {
	return append([]Entry(nil), v.entries...)
}

func (v *View) Get(id Identity) (Entry, bool) {
	i, ok := v.index[id]
	if !ok {
		return Entry{}, false
	}
	return v.entries[i], true
}

// Range calls fn for each row in PID order until fn returns false.
func (v *View) Range(fn func(Entry) bool) {
	for _, e := range v.entries {
		if !fn(e) {
			return
		}
	}
}

// Order selects the sort key for Top.
type Order int

const (
	ByCPU Order = iota
	ByMemory
)

// Top returns up to n rows with the highest value of the given order.
// Rows without a defined CPU rate sort last for ByCPU. n <= 0 means all.
func (v *View) Top(n int, by Order) []Entry {
	out := v.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if by == ByMemory {
			return a.MemoryBytes > b.MemoryBytes
		}
		if a.HasCPU != b.HasCPU {
			return a.HasCPU
		}
		return a.CPUPercent > b.CPUPercent
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
