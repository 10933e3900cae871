//go:build linux

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/procwatch/pkg/alert"
	"github.com/ja7ad/procwatch/pkg/profile"
	"github.com/ja7ad/procwatch/pkg/system/cgroup"
	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/system/proc"
	"github.com/ja7ad/procwatch/pkg/table"
	"github.com/ja7ad/procwatch/pkg/types"
)

func init() { color.NoColor = true }

func TestParseOrder(t *testing.T) {
	o, err := parseOrder("")
	require.NoError(t, err)
	assert.Equal(t, table.ByCPU, o)

	o, err = parseOrder(" Memory ")
	require.NoError(t, err)
	assert.Equal(t, table.ByMemory, o)

	_, err = parseOrder("io")
	assert.Error(t, err)
}

func TestFormatEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	cpu := profile.Rule{Name: "hot", Metric: profile.MetricCPU, Operator: profile.OpGreater, Limit: 80}
	mem := profile.Rule{Name: "fat", Metric: profile.MetricMemory, Operator: profile.OpGreater, Limit: float64(types.GiB)}

	raised := formatEvent(alert.Event{Kind: alert.KindRaised, Rule: cpu, Observed: 93.3,
		Identity: table.Identity{PID: 42}, Command: "make", At: at})
	assert.Contains(t, raised, "03:04:05 RAISED")
	assert.Contains(t, raised, "pid=42 make 93.3%")

	cleared := formatEvent(alert.Event{Kind: alert.KindCleared, Rule: mem, Observed: float64(512 * types.MiB),
		Identity: table.Identity{PID: 7}, Command: "java", At: at})
	assert.Contains(t, cleared, "CLEARED fat")
	assert.Contains(t, cleared, "512.00 MB")

	died := profile.Rule{Name: "db-died", Metric: profile.MetricExit,
		Target: profile.Target{Kind: profile.TargetPattern, Pattern: "postgres"}}
	exited := formatEvent(alert.Event{Kind: alert.KindExited, Rule: died,
		Identity: table.Identity{PID: 9}, Command: "postgres", At: at})
	assert.Contains(t, exited, "03:04:05 EXITED  db-died")
	assert.Contains(t, exited, "pid=9 postgres")

	failed := formatEvent(alert.ErrorEvent(errors.New("proc gone"), at))
	assert.Contains(t, failed, "ERROR   proc gone")
}

func TestRenderer_Table(t *testing.T) {
	tbl := table.New(host.Info{Cores: 2, ClockTicks: 100, MemTotal: types.GiB})
	t0 := time.Unix(1_700_000_000, 0)
	tbl.Merge([]proc.Record{
		{PID: 1, StartTime: 1, Command: "init", State: 'S', Threads: 1, RSS: 8 * types.MiB},
		{PID: 2, StartTime: 2, Command: "busy", State: 'R', Threads: 4, RSS: 64 * types.MiB},
	}, t0)
	tbl.Merge([]proc.Record{
		{PID: 1, StartTime: 1, Command: "init", State: 'S', Threads: 1, RSS: 8 * types.MiB},
		{PID: 2, StartTime: 2, Command: "busy", State: 'R', Threads: 4, CPUTicks: 150, RSS: 65 * types.MiB},
	}, t0.Add(time.Second))

	var buf bytes.Buffer
	newRenderer(&buf, 1, table.ByCPU).table(tbl.View())
	out := buf.String()

	assert.Contains(t, out, "2 processes")
	assert.Contains(t, out, "PID")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, "title, header, rule, one row")
	assert.Regexp(t, `^2\s+busy\s+R\s+4\s+150\.0\s+65\.00 MB\s+6\.3\s+\+1\.00 MB$`, lines[3])
}

func TestPrintProfiles(t *testing.T) {
	set := profile.Set{defaultProfile()}
	set[0].Rules[1].Disabled = true

	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf, set))
	out := buf.String()
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "cpu-hog")
	assert.Contains(t, out, "memory-hog: memory > 2.00 GB for 10s")
	assert.Contains(t, out, "[disabled]")
}

func TestPrintHeader(t *testing.T) {
	var buf bytes.Buffer
	info := host.Info{Cores: 8, MemTotal: 16 * types.GiB, Hostname: "box"}
	printHeader(&buf, info, cgroup.V2, "/sys/fs/cgroup", defaultProfile(), time.Unix(0, 0))
	out := buf.String()
	assert.Contains(t, out, "Host: box")
	assert.Contains(t, out, "Kernel: -")
	assert.Contains(t, out, "16.00 GB")
	assert.Contains(t, out, "cgroup v2 (/sys/fs/cgroup)")
	assert.Contains(t, out, `Profile "default": every 1s, 2 rules`)
}

func TestSelectProfile(t *testing.T) {
	set := profile.Set{defaultProfile()}

	p, err := selectProfile(set, "default", 250*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, p.SampleInterval)

	_, err = selectProfile(set, "nope", 0)
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
	assert.Contains(t, err.Error(), "available: default")
	require.NoError(t, defaultProfile().Validate())
}
