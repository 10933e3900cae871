// Package profile defines the named alert configuration consumed by the
// alert evaluator, plus a file loader for it.
package profile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ja7ad/procwatch/pkg/types"
)

// Metric is the process measurement a rule looks at.
type Metric int

const (
	MetricCPU    Metric = iota + 1 // percent of one core (0..100×cores)
	MetricMemory                   // resident bytes
	// MetricExit fires once when a matching process exits. Limit, Operator
	// and SustainedFor are ignored.
	MetricExit
)

func (m Metric) String() string {
	switch m {
	case MetricCPU:
		return "cpu"
	case MetricMemory:
		return "memory"
	case MetricExit:
		return "exit"
	default:
		return "unknown"
	}
}

func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return MetricCPU, nil
	case "memory", "mem", "rss":
		return MetricMemory, nil
	case "exit", "died":
		return MetricExit, nil
	}
	return 0, fmt.Errorf("%w: unknown metric %q", ErrInvalidRule, s)
}

// Operator compares an observed value against a rule's limit.
type Operator string

const OpGreater Operator = ">"

func ParseOperator(s string) (Operator, error) {
	switch strings.TrimSpace(s) {
	case "", ">", "gt":
		return OpGreater, nil
	}
	return "", fmt.Errorf("%w: unsupported operator %q", ErrInvalidRule, s)
}

// Exceeds reports whether observed violates limit.
func (o Operator) Exceeds(observed, limit float64) bool {
	return observed > limit
}

type TargetKind int

const (
	TargetAll     TargetKind = iota // every process
	TargetPID                       // one pid
	TargetPattern                   // command name contains Pattern
)

// Target selects which processes a rule applies to.
type Target struct {
	Kind    TargetKind
	PID     int
	Pattern string
}

// ParseTarget accepts "" or "*" (all), "pid:<n>", or a command substring.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "*":
		return Target{Kind: TargetAll}, nil
	case strings.HasPrefix(s, "pid:"):
		pid, err := strconv.Atoi(strings.TrimPrefix(s, "pid:"))
		if err != nil || pid <= 0 {
			return Target{}, fmt.Errorf("%w: bad pid target %q", ErrInvalidRule, s)
		}
		return Target{Kind: TargetPID, PID: pid}, nil
	default:
		return Target{Kind: TargetPattern, Pattern: s}, nil
	}
}

func (t Target) Matches(pid int, command string) bool {
	switch t.Kind {
	case TargetPID:
		return pid == t.PID
	case TargetPattern:
		return strings.Contains(command, t.Pattern)
	default:
		return true
	}
}

func (t Target) String() string {
	switch t.Kind {
	case TargetPID:
		return "pid:" + strconv.Itoa(t.PID)
	case TargetPattern:
		return t.Pattern
	default:
		return "*"
	}
}

// Rule is one threshold. Limit is a percentage for MetricCPU and a byte
// count for MetricMemory. An exit rule must name a pid or a pattern.
type Rule struct {
	Name         string
	Metric       Metric
	Operator     Operator
	Limit        float64
	SustainedFor time.Duration
	Target       Target
	Disabled     bool
}

// Validate reports a malformed rule.
func (r Rule) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	case r.Metric != MetricCPU && r.Metric != MetricMemory && r.Metric != MetricExit:
		return fmt.Errorf("%w: rule %q: unknown metric", ErrInvalidRule, r.Name)
	case r.Metric == MetricExit && r.Target.Kind == TargetAll:
		return fmt.Errorf("%w: rule %q: exit rule needs a pid or pattern target", ErrInvalidRule, r.Name)
	case r.Metric != MetricExit && r.Operator != OpGreater:
		return fmt.Errorf("%w: rule %q: unsupported operator %q", ErrInvalidRule, r.Name, r.Operator)
	case r.Limit < 0:
		return fmt.Errorf("%w: rule %q: negative limit", ErrInvalidRule, r.Name)
	case r.SustainedFor < 0:
		return fmt.Errorf("%w: rule %q: negative sustained_for", ErrInvalidRule, r.Name)
	}
	return nil
}

func (r Rule) String() string {
	switch r.Metric {
	case MetricExit:
		return fmt.Sprintf("%s: exit of %s", r.Name, r.Target)
	case MetricMemory:
		return fmt.Sprintf("%s: memory %s %s for %s on %s", r.Name, r.Operator, types.Bytes(r.Limit), r.SustainedFor, r.Target)
	default:
		return fmt.Sprintf("%s: %s %s %g%% for %s on %s", r.Name, r.Metric, r.Operator, r.Limit, r.SustainedFor, r.Target)
	}
}

// Profile is a named set of rules and the sampling interval they are
// evaluated at. Treat it as immutable once handed to the sampler.
type Profile struct {
	Name           string
	SampleInterval time.Duration
	Rules          []Rule
}

// Validate rejects profiles the engine cannot run: ErrStaleProfile for a
// non-positive interval or no rules, ErrDuplicateRule when two rules share a
// name (rule names key alert state).
func (p Profile) Validate() error {
	if p.SampleInterval <= 0 || len(p.Rules) == 0 {
		return fmt.Errorf("%w: %q", ErrStaleProfile, p.Name)
	}
	seen := make(map[string]struct{}, len(p.Rules))
	for _, r := range p.Rules {
		if _, ok := seen[r.Name]; ok {
			return fmt.Errorf("%w: %q in profile %q", ErrDuplicateRule, r.Name, p.Name)
		}
		seen[r.Name] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a profile in use.
func (p Profile) Clone() Profile {
	out := p
	out.Rules = append([]Rule(nil), p.Rules...)
	return out
}

// Rule looks a rule up by name.
func (p Profile) Rule(name string) (Rule, bool) {
	for _, r := range p.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
