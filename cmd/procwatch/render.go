//go:build linux

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/ja7ad/procwatch/pkg/alert"
	"github.com/ja7ad/procwatch/pkg/profile"
	"github.com/ja7ad/procwatch/pkg/system/cgroup"
	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/table"
	"github.com/ja7ad/procwatch/pkg/types"
)

var (
	raisedColor  = color.New(color.FgRed, color.Bold)
	clearedColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgYellow)
	exitedColor  = color.New(color.FgMagenta)
)

func parseOrder(s string) (table.Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return table.ByCPU, nil
	case "mem", "memory", "rss":
		return table.ByMemory, nil
	default:
		return 0, fmt.Errorf("unknown sort key %q (want cpu or memory)", s)
	}
}

type renderer struct {
	w     io.Writer
	top   int
	order table.Order
}

func newRenderer(w io.Writer, top int, order table.Order) *renderer {
	return &renderer{w: w, top: top, order: order}
}

func (r *renderer) events(events []alert.Event) {
	for _, e := range events {
		fmt.Fprintln(r.w, formatEvent(e))
	}
}

func formatEvent(e alert.Event) string {
	ts := e.At.Format("15:04:05")
	switch e.Kind {
	case alert.KindRaised:
		return raisedColor.Sprintf("%s RAISED  %-12s pid=%d %s %s (%s)",
			ts, e.Rule.Name, e.Identity.PID, e.Command, observed(e.Rule.Metric, e.Observed), e.Rule)
	case alert.KindCleared:
		return clearedColor.Sprintf("%s CLEARED %-12s pid=%d %s %s",
			ts, e.Rule.Name, e.Identity.PID, e.Command, observed(e.Rule.Metric, e.Observed))
	case alert.KindExited:
		return exitedColor.Sprintf("%s EXITED  %-12s pid=%d %s",
			ts, e.Rule.Name, e.Identity.PID, e.Command)
	default:
		return errorColor.Sprintf("%s ERROR   %v", ts, e.Err)
	}
}

func observed(m profile.Metric, v float64) string {
	if m == profile.MetricMemory {
		return types.Bytes(v).Humanized()
	}
	return fmt.Sprintf("%.1f%%", v)
}

func (r *renderer) table(v *table.View) {
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s  %d processes\n", v.SampledAt().Format("2006-01-02 15:04:05"), v.Len())
	fmt.Fprintln(tw, "PID\tCOMMAND\tS\tTHR\tCPU%\tRSS\tMEM%\tΔRSS")
	fmt.Fprintln(tw, "---\t-------\t-\t---\t----\t---\t----\t----")
	for _, e := range v.Top(r.top, r.order) {
		cpu := "-"
		if pct, ok := e.CPU(); ok {
			cpu = fmt.Sprintf("%.1f", pct)
		}
		fmt.Fprintf(tw, "%d\t%s\t%c\t%d\t%s\t%s\t%.1f\t%s\n",
			e.PID, e.Command(), stateChar(e.Current.State), e.Current.Threads,
			cpu, e.MemoryBytes, e.MemoryPercent, e.MemoryTrend)
	}
	fmt.Fprintln(tw)
	_ = tw.Flush()
}

func stateChar(b byte) byte {
	if b == 0 {
		return '?'
	}
	return b
}

func printHeader(w io.Writer, info host.Info, cg cgroup.Version, cgDetail string, p profile.Profile, now time.Time) {
	cgLine := cg.String()
	if cgDetail != "" {
		cgLine += " (" + cgDetail + ")"
	}
	fmt.Fprintf(w, _console,
		orDash(info.Hostname), orDash(info.Kernel), info.Cores, info.MemTotal, cgLine,
		p.Name, p.SampleInterval, len(p.Rules), now.Format("2006-01-02 15:04:05"))
}

func printProfiles(w io.Writer, set profile.Set) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tINTERVAL\tRULE")
	fmt.Fprintln(tw, "-------\t--------\t----")
	for _, p := range set {
		for i, rule := range p.Rules {
			name, interval := p.Name, p.SampleInterval.String()
			if i > 0 {
				name, interval = "", ""
			}
			state := ""
			if rule.Disabled {
				state = " [disabled]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s%s\n", name, interval, rule, state)
		}
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

const _console = `procwatch - Linux process monitor

       Host: %s
       Kernel: %s
       CPUs: %d
       Mem: %s
       Cgroup: %s

Profile %q: every %s, %d rules, started %s

`
