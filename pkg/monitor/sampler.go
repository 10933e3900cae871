// Package monitor runs the sampling loop: on every interval it reads a
// snapshot, merges it into the process table, evaluates the active profile
// and publishes the result.
//
// One goroutine owns the table and the alert state. Consumers only ever see
// an immutable *table.View and drained copies of the event buffer, so they
// never observe a half-merged table and never block the loop for longer than
// a pointer swap.
//
//	Idle -> Sampling -> Publishing -> Idle ... -> Stopped
//
// A cycle that overruns the interval skips the next tick instead of queueing
// it. Shutdown is honored only between cycles.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ja7ad/procwatch/pkg/alert"
	"github.com/ja7ad/procwatch/pkg/metrics"
	"github.com/ja7ad/procwatch/pkg/profile"
	"github.com/ja7ad/procwatch/pkg/system/host"
	"github.com/ja7ad/procwatch/pkg/system/proc"
	"github.com/ja7ad/procwatch/pkg/table"
)

// Reader produces one snapshot of the live processes. *proc.Reader
// satisfies it.
type Reader interface {
	Read() (proc.Snapshot, error)
}

type State int

const (
	StateNew State = iota
	StateIdle
	StateSampling
	StatePublishing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StatePublishing:
		return "publishing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Sampler struct {
	reader  Reader
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	maxEvt  int
	ioLog   *rate.Limiter

	// owned by the loop goroutine
	table *table.Table
	eval  *alert.Evaluator

	mu      sync.Mutex
	state   State
	active  profile.Profile
	pending *profile.Profile
	view    *table.View
	events  []alert.Event
	cancel  context.CancelFunc
	done    chan struct{}

	updates chan struct{}
}

// New builds a stopped sampler. info bounds CPU rates and sizes memory
// percentages.
func New(r Reader, info host.Info, cfg *Config) *Sampler {
	c := mergeConfig(cfg)
	return &Sampler{
		reader:  r,
		log:     c.Logger.Named("sampler"),
		metrics: c.Metrics,
		now:     c.Clock,
		maxEvt:  c.EventBuffer,
		ioLog:   rate.NewLimiter(rate.Every(c.IOErrorLogEvery), 1),
		table:   table.New(info),
		eval:    alert.NewEvaluator(),
		view:    table.EmptyView(),
		updates: make(chan struct{}, 1),
	}
}

// Start validates p and launches the loop. The first cycle runs right away,
// so rates are available after the first tick. Cancelling ctx stops the loop
// like Shutdown does.
func (s *Sampler) Start(ctx context.Context, p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNew {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	s.active = p.Clone()
	s.state = StateIdle
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info("sampler started",
		zap.String("profile", p.Name),
		zap.Duration("interval", p.SampleInterval),
		zap.Int("rules", len(p.Rules)))

	go s.run(ctx)
	return nil
}

// SwapProfile replaces the active profile at the start of the next cycle.
// An invalid profile is rejected and the current one stays in effect.
func (s *Sampler) SwapProfile(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNew || s.state == StateStopped {
		return ErrNotStarted
	}
	next := p.Clone()
	s.pending = &next
	return nil
}

// Shutdown stops the loop and waits for it. An in-flight cycle completes and
// publishes first. Calling it again after the loop stopped is a no-op.
func (s *Sampler) Shutdown() error {
	s.mu.Lock()
	if s.state == StateNew {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// LatestTable returns the most recently published table. Never nil.
func (s *Sampler) LatestTable() *table.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// DrainEvents returns every event published since the previous drain, oldest
// first.
func (s *Sampler) DrainEvents() []alert.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// Updates is signalled after each publication. It holds at most one pending
// signal; consumers that fall behind see only that something changed.
func (s *Sampler) Updates() <-chan struct{} { return s.updates }

func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Profile returns the profile in effect for the latest cycle.
func (s *Sampler) Profile() profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateStopped)

	interval := s.cycle()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sampler stopped")
			return
		case <-ticker.C:
		}
		// a tick and a shutdown may be ready together
		if ctx.Err() != nil {
			s.log.Info("sampler stopped")
			return
		}

		next := s.cycle()
		if next != interval {
			s.log.Info("sample interval changed",
				zap.Duration("from", interval), zap.Duration("to", next))
			ticker.Reset(next)
			interval = next
		}
		if skipOverrun(ticker.C) {
			s.metrics.SkippedTick()
			s.log.Debug("cycle overran interval, tick skipped", zap.Duration("interval", interval))
		}
	}
}

// skipOverrun discards a tick that fired while the cycle was still running.
func skipOverrun(c <-chan time.Time) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// cycle runs one Sampling -> Publishing pass and returns the interval of the
// profile it used. Every event of the cycle is stamped with the snapshot
// time, or the cycle start when the read failed.
func (s *Sampler) cycle() time.Duration {
	start := s.now()
	p, swapped := s.begin()

	snap, err := s.reader.Read()
	at := start
	if err == nil && !snap.At.IsZero() {
		at = snap.At
	}

	var events []alert.Event
	if swapped {
		events = append(events, s.eval.Retain(p, at)...)
		s.metrics.ProfileSwap()
		s.log.Info("profile swapped",
			zap.String("profile", p.Name),
			zap.Duration("interval", p.SampleInterval),
			zap.Int("rules", len(p.Rules)))
	}

	if err != nil {
		s.metrics.IOError()
		if s.ioLog.Allow() {
			s.log.Warn("process listing unreadable, cycle skipped", zap.Error(err))
		}
		events = append(events, alert.ErrorEvent(err, at))
		s.publish(nil, events)
		return p.SampleInterval
	}

	removed := s.table.Merge(snap.Records, at)
	events = append(events, s.eval.Forget(removed, p, at)...)
	view := s.table.View()

	s.setState(StatePublishing)
	events = append(events, s.eval.Evaluate(view, p, at)...)
	s.publish(view, events)

	s.metrics.ObserveCycle(s.now().Sub(start), view.Len(), snap.Skipped)
	s.log.Debug("cycle done",
		zap.Int("processes", view.Len()),
		zap.Int("removed", len(removed)),
		zap.Int("events", len(events)),
		zap.Int("skipped", snap.Skipped.Total()))
	return p.SampleInterval
}

// begin enters Sampling and applies a pending profile swap.
func (s *Sampler) begin() (profile.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateSampling
	if s.pending == nil {
		return s.active, false
	}
	s.active = *s.pending
	s.pending = nil
	return s.active, true
}

// publish hands the cycle's results to consumers. A nil view keeps the
// previous table.
func (s *Sampler) publish(view *table.View, events []alert.Event) {
	for _, e := range events {
		s.logEvent(e)
	}

	s.mu.Lock()
	if view != nil {
		s.view = view
	}
	s.events = append(s.events, events...)
	dropped := 0
	if over := len(s.events) - s.maxEvt; over > 0 {
		dropped = over
		s.events = append([]alert.Event(nil), s.events[over:]...)
	}
	s.state = StateIdle
	s.mu.Unlock()

	if dropped > 0 {
		s.metrics.DroppedEvents(dropped)
		s.log.Warn("event buffer full, oldest events dropped", zap.Int("dropped", dropped))
	}
	s.metrics.ActiveAlerts(s.eval.Active())

	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func (s *Sampler) logEvent(e alert.Event) {
	switch e.Kind {
	case alert.KindRaised, alert.KindCleared:
		s.metrics.Alert(e.Rule.Name, e.Kind.String())
		s.log.Info("alert "+e.Kind.String(),
			zap.String("rule", e.Rule.Name),
			zap.Int("pid", e.Identity.PID),
			zap.String("command", e.Command),
			zap.Float64("observed", e.Observed),
			zap.Float64("limit", e.Rule.Limit))
	case alert.KindExited:
		s.metrics.Alert(e.Rule.Name, e.Kind.String())
		s.log.Info("watched process exited",
			zap.String("rule", e.Rule.Name),
			zap.Int("pid", e.Identity.PID),
			zap.String("command", e.Command))
	}
}

func (s *Sampler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
