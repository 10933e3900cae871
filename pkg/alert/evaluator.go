// Package alert decides which processes violate the active profile and turns
// sustained violations into a deduplicated stream of Raised/Cleared events.
//
// State is a small machine per (process identity, rule name): idle ->
// violating (first violation time recorded) -> raised. Dropping below the
// limit returns to idle, emitting Cleared if the alert was raised. The state
// lives in its own map, not on the table entry, because it is cleared on
// process exit and on rule changes.
package alert

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ja7ad/procwatch/pkg/profile"
	"github.com/ja7ad/procwatch/pkg/table"
)

type state struct {
	rule           profile.Rule
	order          int
	firstViolation time.Time
	raised         bool
	observed       float64
	command        string
}

// Evaluator owns all alert state. Not safe for concurrent use; the sampler
// is its only caller.
type Evaluator struct {
	states map[table.Identity]map[string]*state
	newID  func() string
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		states: make(map[table.Identity]map[string]*state),
		newID:  uuid.NewString,
	}
}

// Active is the number of currently raised alerts.
func (ev *Evaluator) Active() int {
	n := 0
	for _, rules := range ev.states {
		for _, st := range rules {
			if st.raised {
				n++
			}
		}
	}
	return n
}

// Tracked is the number of (identity, rule) pairs in violation, raised or not.
func (ev *Evaluator) Tracked() int {
	n := 0
	for _, rules := range ev.states {
		n += len(rules)
	}
	return n
}

// Evaluate checks every row of v against p's rules at time now.
//
// A violation counts from the start of the window the first violating
// observation describes (see violationStart). CPU rules skip rows without a
// rate; exit rules are handled by Forget. Identities holding state but absent
// from v are forgotten. Events are ordered by PID, then rule order.
func (ev *Evaluator) Evaluate(v *table.View, p profile.Profile, now time.Time) []Event {
	var events []Event

	v.Range(func(e table.Entry) bool {
		for i, r := range p.Rules {
			events = ev.check(events, e, i, r, p.SampleInterval, now)
		}
		return true
	})

	var gone []table.Identity
	for id := range ev.states {
		if _, ok := v.Get(id); !ok {
			gone = append(gone, id)
		}
	}
	sortIdentities(gone)
	for _, id := range gone {
		events = ev.forget(events, id, "", now)
	}
	return events
}

func (ev *Evaluator) check(events []Event, e table.Entry, order int, r profile.Rule, interval time.Duration, now time.Time) []Event {
	rules := ev.states[e.Identity]
	st := rules[r.Name]

	if r.Disabled || !r.Target.Matches(e.PID, e.Command()) {
		if st != nil {
			events = ev.clear(events, e.Identity, st, now)
			ev.drop(e.Identity, r.Name)
		}
		return events
	}

	observed, ok := observe(e, r.Metric)
	if !ok {
		return events
	}

	if !r.Operator.Exceeds(observed, r.Limit) {
		if st != nil {
			st.observed = observed
			events = ev.clear(events, e.Identity, st, now)
			ev.drop(e.Identity, r.Name)
		}
		return events
	}

	if st == nil {
		st = &state{rule: r, order: order, firstViolation: violationStart(e, r.Metric, interval)}
		if rules == nil {
			rules = make(map[string]*state)
			ev.states[e.Identity] = rules
		}
		rules[r.Name] = st
	}
	st.observed = observed
	st.command = e.Command()

	if !st.raised && now.Sub(st.firstViolation) >= r.SustainedFor {
		st.raised = true
		events = append(events, ev.event(KindRaised, e.Identity, st, now))
	}
	return events
}

// violationStart is the start of the window an observation stands for. A
// CPU rate covers the span since the previous sample. A memory reading is
// instantaneous and stands for the interval ending at it, whether or not
// an earlier sample exists, so both metrics need the same number of
// violating samples to reach SustainedFor.
func violationStart(e table.Entry, m profile.Metric, interval time.Duration) time.Time {
	if m == profile.MetricCPU {
		return e.WindowStart()
	}
	return e.Current.SampledAt.Add(-interval)
}

// Forget drops all state of exited processes, emitting Cleared for every
// raised alert on them, then Exited for every enabled exit rule of p whose
// target matched the process.
func (ev *Evaluator) Forget(removed []table.Entry, p profile.Profile, now time.Time) []Event {
	var events []Event
	for _, e := range removed {
		events = ev.forget(events, e.Identity, e.Current.Command, now)
		for _, r := range p.Rules {
			if r.Metric != profile.MetricExit || r.Disabled || !r.Target.Matches(e.PID, e.Current.Command) {
				continue
			}
			events = append(events, Event{
				ID:       ev.newID(),
				Kind:     KindExited,
				Identity: e.Identity,
				Command:  e.Current.Command,
				Rule:     r,
				At:       now,
			})
		}
	}
	return events
}

func (ev *Evaluator) forget(events []Event, id table.Identity, command string, now time.Time) []Event {
	rules, ok := ev.states[id]
	if !ok {
		return events
	}
	for _, st := range sortedStates(rules) {
		if command != "" {
			st.command = command
		}
		events = ev.clear(events, id, st, now)
	}
	delete(ev.states, id)
	return events
}

// Retain keeps only state whose rule still exists unchanged in p, clearing
// raised alerts of removed or redefined rules. Called on profile swap.
func (ev *Evaluator) Retain(p profile.Profile, now time.Time) []Event {
	ids := make([]table.Identity, 0, len(ev.states))
	for id := range ev.states {
		ids = append(ids, id)
	}
	sortIdentities(ids)

	var events []Event
	for _, id := range ids {
		for _, st := range sortedStates(ev.states[id]) {
			if r, ok := p.Rule(st.rule.Name); ok && r == st.rule {
				continue
			}
			events = ev.clear(events, id, st, now)
			ev.drop(id, st.rule.Name)
		}
	}
	return events
}

func (ev *Evaluator) clear(events []Event, id table.Identity, st *state, now time.Time) []Event {
	if !st.raised {
		return events
	}
	st.raised = false
	return append(events, ev.event(KindCleared, id, st, now))
}

func (ev *Evaluator) drop(id table.Identity, rule string) {
	rules := ev.states[id]
	delete(rules, rule)
	if len(rules) == 0 {
		delete(ev.states, id)
	}
}

func (ev *Evaluator) event(k Kind, id table.Identity, st *state, now time.Time) Event {
	return Event{
		ID:       ev.newID(),
		Kind:     k,
		Identity: id,
		Command:  st.command,
		Rule:     st.rule,
		Observed: st.observed,
		At:       now,
	}
}

func observe(e table.Entry, m profile.Metric) (float64, bool) {
	switch m {
	case profile.MetricCPU:
		return e.CPU()
	case profile.MetricMemory:
		return float64(e.MemoryBytes), true
	default:
		return 0, false
	}
}

func sortedStates(rules map[string]*state) []*state {
	out := make([]*state, 0, len(rules))
	for _, st := range rules {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].rule.Name < out[j].rule.Name
	})
	return out
}

func sortIdentities(ids []table.Identity) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].PID != ids[j].PID {
			return ids[i].PID < ids[j].PID
		}
		return ids[i].StartTime < ids[j].StartTime
	})
}
