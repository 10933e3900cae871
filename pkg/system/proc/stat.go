package proc

import (
	"bytes"
	"fmt"
	"strconv"
)

// Stat holds the fields of /proc/<pid>/stat used by the sampler.
type Stat struct {
	PID        int
	Comm       string
	State      byte
	PPID       int
	Utime      uint64 // user CPU jiffies
	Stime      uint64 // system CPU jiffies
	NumThreads int
	StartTime  uint64 // jiffies after boot
	RSSPages   uint64
}

// field positions (1-based, man 5 proc) counted after the ") " separator
const (
	fState      = 3
	fPPID       = 4
	fUtime      = 14
	fStime      = 15
	fNumThreads = 20
	fStartTime  = 22
	fRSS        = 24
)

// ParseStat parses the single line of /proc/<pid>/stat.
//
// comm (2nd field) is in parens and may contain spaces or parens itself,
// so the numeric tail starts after the last ") ".
func ParseStat(data []byte) (Stat, error) {
	data = bytes.TrimSpace(data)
	open := bytes.IndexByte(data, '(')
	end := bytes.LastIndex(data, []byte(") "))
	if open < 0 || end < open {
		return Stat{}, ErrNoStat
	}

	pid, err := strconv.Atoi(string(bytes.TrimSpace(data[:open])))
	if err != nil {
		return Stat{}, fmt.Errorf("%w: pid: %v", ErrNoStat, err)
	}

	fields := bytes.Fields(data[end+2:])
	// fields[0] is overall field 3
	at := func(n int) ([]byte, error) {
		idx := n - fState
		if idx >= len(fields) {
			return nil, ErrShortStat
		}
		return fields[idx], nil
	}
	u64 := func(n int) (uint64, error) {
		b, err := at(n)
		if err != nil {
			return 0, err
		}
		return strconv.ParseUint(string(b), 10, 64)
	}

	st := Stat{PID: pid, Comm: string(data[open+1 : end])}

	state, err := at(fState)
	if err != nil {
		return Stat{}, err
	}
	st.State = state[0]

	ppid, err := u64(fPPID)
	if err != nil {
		return Stat{}, err
	}
	st.PPID = int(ppid)

	if st.Utime, err = u64(fUtime); err != nil {
		return Stat{}, err
	}
	if st.Stime, err = u64(fStime); err != nil {
		return Stat{}, err
	}
	threads, err := u64(fNumThreads)
	if err != nil {
		return Stat{}, err
	}
	st.NumThreads = int(threads)
	if st.StartTime, err = u64(fStartTime); err != nil {
		return Stat{}, err
	}
	// rss may be reported as a negative number for kernel threads
	rss, err := at(fRSS)
	if err != nil {
		return Stat{}, err
	}
	if v, err := strconv.ParseUint(string(rss), 10, 64); err == nil {
		st.RSSPages = v
	}
	return st, nil
}

// CPUTicks is utime+stime.
func (s Stat) CPUTicks() uint64 { return s.Utime + s.Stime }
