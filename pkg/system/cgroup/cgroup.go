//go:build linux

package cgroup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

type Version int

const (
	Unsupported Version = iota // non-Linux or no cgroup mounts
	V1                         // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	Hybrid                     // both v1 and v2 present
)

// ErrNoCgroup indicates that /proc/<pid>/cgroup listed no usable hierarchy.
var ErrNoCgroup = errors.New("cgroup: no hierarchy")

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Detect returns the detected cgroup version and a human-readable detail
// string, parsed from /proc/self/mountinfo.
func Detect() (Version, string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return Unsupported, "", fmt.Errorf("open mountinfo: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return ParseMountinfo(f)
}

// ParseMountinfo classifies cgroup mounts found in a mountinfo stream.
// Lines have the form: <fields> - <fstype> <source> <superopts>.
func ParseMountinfo(r io.Reader) (Version, string, error) {
	var (
		v1Pts []string
		v2Pts []string
		sc    = bufio.NewScanner(r)
	)
	for sc.Scan() {
		line := sc.Text()
		i := strings.LastIndex(line, " - ")
		if i < 0 {
			continue
		}
		tail := strings.Fields(line[i+3:])
		pre := strings.Fields(line[:i])
		// mount point is field 5 (man 5 proc)
		if len(tail) < 1 || len(pre) < 5 {
			continue
		}
		switch tail[0] {
		case "cgroup2":
			v2Pts = append(v2Pts, pre[4])
		case "cgroup":
			v1Pts = append(v1Pts, pre[4])
		}
	}
	if err := sc.Err(); err != nil {
		return Unsupported, "", fmt.Errorf("scan mountinfo: %w", err)
	}

	switch {
	case len(v1Pts) > 0 && len(v2Pts) > 0:
		return Hybrid, fmt.Sprintf("cgroup2 on %v; cgroup v1 on %v",
			strings.Join(v2Pts, ","), strings.Join(v1Pts, ",")), nil
	case len(v2Pts) > 0:
		return V2, fmt.Sprintf("cgroup2 on %v", strings.Join(v2Pts, ",")), nil
	case len(v1Pts) > 0:
		return V1, fmt.Sprintf("cgroup v1 on %v", strings.Join(v1Pts, ",")), nil
	default:
		return Unsupported, "no cgroup mounts found", nil
	}
}

// ReadProcCgroup returns the cgroup path of a process by reading
// <procRoot>/<pid>/cgroup through fs.
func ReadProcCgroup(fs afero.Fs, procRoot string, pid int) (string, error) {
	f, err := fs.Open(filepath.Join(procRoot, strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ParseProcCgroup(f)
}

// ParseProcCgroup picks one path out of a /proc/<pid>/cgroup listing.
// The unified ("0::") entry wins; on v1-only hosts the cpu controller is
// preferred, then name=systemd, then the first entry.
func ParseProcCgroup(r io.Reader) (string, error) {
	var cpuPath, systemdPath, firstPath string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		// hierarchy-ID:controller-list:cgroup-path
		parts := strings.SplitN(sc.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		id, controllers, path := parts[0], parts[1], parts[2]
		if id == "0" && controllers == "" {
			return path, nil
		}
		if firstPath == "" {
			firstPath = path
		}
		for _, c := range strings.Split(controllers, ",") {
			switch c {
			case "cpu":
				cpuPath = path
			case "name=systemd":
				systemdPath = path
			}
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	switch {
	case cpuPath != "":
		return cpuPath, nil
	case systemdPath != "":
		return systemdPath, nil
	case firstPath != "":
		return firstPath, nil
	}
	return "", ErrNoCgroup
}
