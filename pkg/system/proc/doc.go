// Package proc reads the Linux per-process accounting interface (/proc) and
// turns it into raw, immutable process records. It is the kernel-facing leaf
// of the sampler (see pkg/monitor) and keeps no state between reads.
//
// Overview
//
//   - Reader.Read() (Snapshot, error)
//
//     Lists /proc once, parses /proc/<pid>/stat for every numeric entry and
//     returns one Record per readable process, sorted by PID. All records of
//     a snapshot share the timestamp taken before the listing.
//
//   - Record fields:
//     PID, StartTime  : identity; StartTime (jiffies after boot) tells apart
//     a later process that reuses the PID
//     CPUTicks        : utime+stime, cumulative clock ticks (CLK_TCK units)
//     RSS             : resident set size (stat rss pages × page size)
//     Command, State, PPID, Threads, Cgroup (optional)
//
// # Failure model
//
// The read is best-effort and never atomic across processes:
//
//   - a process that exits between listing and reading (ENOENT, ESRCH, or an
//     empty stat) is counted in Skipped.Gone and left out
//   - a process we may not read (EACCES/EPERM) is counted in Skipped.Denied
//   - a stat line that cannot be parsed is counted in Skipped.Malformed
//   - only an unreadable listing fails the call, wrapping ErrIO
//
// # Testing
//
// Reader reads through an afero.Fs. Tests build a fake /proc in
// afero.NewMemMapFs() and inject faults with a wrapping Fs; the live reader
// is smoke-tested against /proc/self.
//
// Example
//
//	/*
//	r := proc.NewReader(proc.WithCgroups())
//	snap, err := r.Read()
//	if err != nil { log.Fatal(err) }
//	for _, rec := range snap.Records {
//	    fmt.Printf("%d %s ticks=%d rss=%s\n", rec.PID, rec.Command, rec.CPUTicks, rec.RSS)
//	}
//	*/
package proc
