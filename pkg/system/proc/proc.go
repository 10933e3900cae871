//go:build linux

package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/ja7ad/procwatch/pkg/system/cgroup"
	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/types"
)

// DefaultRoot is where the kernel mounts its per-process accounting interface.
const DefaultRoot = "/proc"

// Reader enumerates live processes. It keeps no state between reads.
type Reader struct {
	fs         afero.Fs
	root       string
	pageSize   int
	withCgroup bool
	now        func() time.Time
}

type Option func(*Reader)

// WithFs reads the accounting interface from root on fsys instead of the
// host's /proc.
func WithFs(fsys afero.Fs, root string) Option {
	return func(r *Reader) {
		r.fs = fsys
		r.root = root
	}
}

// WithCgroups also resolves each process's cgroup path.
func WithCgroups() Option {
	return func(r *Reader) { r.withCgroup = true }
}

// WithPageSize overrides the page size used to convert stat's rss pages.
func WithPageSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{
		fs:       afero.NewOsFs(),
		root:     DefaultRoot,
		pageSize: host.PageSize(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Read lists <root> once and returns a record per readable process.
//
// Processes that vanish mid-read or deny access are skipped and counted;
// only an unreadable listing fails the call (wrapping ErrIO). All records
// of one snapshot share the same SampledAt, taken before the listing.
func (r *Reader) Read() (Snapshot, error) {
	at := r.now()

	dir, err := r.fs.Open(r.root)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	names, err := dir.Readdirnames(-1)
	_ = dir.Close()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrIO, err)
	}

	snap := Snapshot{At: at, Records: make([]Record, 0, len(names))}
	for _, name := range names {
		pid, err := strconv.Atoi(name)
		if err != nil || pid <= 0 {
			continue
		}
		rec, err := r.readPID(pid)
		switch {
		case err == nil:
			rec.SampledAt = at
			snap.Records = append(snap.Records, rec)
		case errors.Is(err, ErrGone):
			snap.Skipped.Gone++
		case errors.Is(err, ErrPermission):
			snap.Skipped.Denied++
		default:
			snap.Skipped.Malformed++
		}
	}

	sort.Slice(snap.Records, func(i, j int) bool {
		return snap.Records[i].PID < snap.Records[j].PID
	})
	return snap, nil
}

func (r *Reader) readPID(pid int) (Record, error) {
	data, err := afero.ReadFile(r.fs, filepath.Join(r.root, strconv.Itoa(pid), "stat"))
	if err != nil {
		return Record{}, classify(pid, err)
	}
	if len(data) == 0 {
		// exited while the file was open
		return Record{}, fmt.Errorf("%w: pid %d: empty stat", ErrGone, pid)
	}
	st, err := ParseStat(data)
	if err != nil {
		return Record{}, fmt.Errorf("pid %d: %w", pid, err)
	}

	rec := Record{
		PID:       pid,
		StartTime: st.StartTime,
		Command:   st.Comm,
		State:     st.State,
		PPID:      st.PPID,
		Threads:   st.NumThreads,
		CPUTicks:  st.CPUTicks(),
		RSS:       types.FromPages(st.RSSPages, r.pageSize),
	}
	if r.withCgroup {
		// best-effort; a missing cgroup never drops the record
		rec.Cgroup, _ = cgroup.ReadProcCgroup(r.fs, r.root, pid)
	}
	return rec, nil
}

func classify(pid int, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("%w: pid %d: %v", ErrGone, pid, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: pid %d: %v", ErrPermission, pid, err)
	default:
		return fmt.Errorf("pid %d: %w", pid, err)
	}
}
