// Package analyzer implements the streaming alert state machine: sliding
// window error accounting, observed-pool failover detection, and per-kind
// alert cooldowns. It is driven by exactly one goroutine; records must be
// fed in log order because pool-change detection compares consecutive
// resolvable records.
package analyzer

import (
	"time"

	"github.com/Nash0810/failsafe/internal/accesslog"
)

// Config holds the analysis parameters
type Config struct {
	WindowSize       int
	MinWindowFill    int
	ThresholdPercent float64
	Cooldowns        map[Kind]time.Duration
}

// Snapshot is a read-only view of analyzer state, used by metrics export
type Snapshot struct {
	ObservedPool string
	WindowLen    int
	WindowErrors int
	RatePercent  float64
	InErrorState bool
}

// Analyzer consumes request outcomes and decides which alerts to emit.
// Not safe for concurrent use; the watcher pipeline owns it exclusively.
type Analyzer struct {
	cfg   Config
	clock Clock
	sink  func(Alert)

	window       *Window
	observedPool string
	inErrorState bool
	lastAlert    map[Kind]time.Time
}

// New creates an analyzer. sink receives every emitted alert and must not
// block; slow delivery belongs in the notifier's dispatcher, not here.
func New(cfg Config, clock Clock, sink func(Alert)) *Analyzer {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.MinWindowFill < 1 {
		cfg.MinWindowFill = 1
	}
	return &Analyzer{
		cfg:       cfg,
		clock:     clock,
		sink:      sink,
		window:    NewWindow(cfg.WindowSize),
		lastAlert: make(map[Kind]time.Time),
	}
}

// Process runs the three checks against one record, in fixed order:
// pool change, then error rate, then recovery. Internal state always
// updates; only the notification is subject to cooldown suppression.
func (a *Analyzer) Process(rec accesslog.Record) {
	a.checkPoolChange(rec)
	a.checkErrorRate(rec)
}

// checkPoolChange updates the observed active pool and fires a failover
// alert when two consecutive resolvable records disagree
func (a *Analyzer) checkPoolChange(rec accesslog.Record) {
	pool := rec.ResolvedPool()
	if pool == "" {
		return
	}

	if a.observedPool == "" {
		// First resolvable record ever: initialize without alerting
		a.observedPool = pool
		return
	}

	if pool == a.observedPool {
		return
	}

	previous := a.observedPool
	a.observedPool = pool

	now := a.clock.Now()
	if a.allow(KindFailover, now) {
		a.sink(Alert{
			Kind:         KindFailover,
			Time:         now,
			PreviousPool: previous,
			CurrentPool:  pool,
		})
	}
}

// checkErrorRate classifies the record into the window and evaluates both
// the high-error-rate and recovery conditions. The two are mutually
// exclusive for a single record, so one evaluation can fire at most one.
func (a *Analyzer) checkErrorRate(rec accesslog.Record) {
	a.window.Push(!rec.Succeeded())

	if a.window.Len() < a.cfg.MinWindowFill {
		return
	}

	rate := a.window.RatePercent()
	now := a.clock.Now()

	// Boundary is strict: a window sitting exactly at the threshold does
	// not fire. Tested in TestThresholdBoundaryExact.
	if rate > a.cfg.ThresholdPercent {
		a.inErrorState = true
		if a.allow(KindErrorRate, now) {
			a.sink(Alert{
				Kind:        KindErrorRate,
				Time:        now,
				CurrentPool: a.observedPool,
				Errors:      a.window.Errors(),
				WindowSize:  a.window.Len(),
				RatePercent: rate,
			})
		}
		return
	}

	if a.inErrorState {
		// The flag clears even when the notification is suppressed, so a
		// later cooldown-expired episode starts from clean state.
		a.inErrorState = false
		if a.allow(KindRecovery, now) {
			a.sink(Alert{
				Kind:        KindRecovery,
				Time:        now,
				CurrentPool: a.observedPool,
				Errors:      a.window.Errors(),
				WindowSize:  a.window.Len(),
				RatePercent: rate,
			})
		}
	}
}

// allow checks the per-kind cooldown and stamps it when the alert may fire.
// The stamp is taken at emission, before delivery: a webhook failure does
// not re-arm the cooldown.
func (a *Analyzer) allow(kind Kind, now time.Time) bool {
	last, ok := a.lastAlert[kind]
	if ok && now.Sub(last) < a.cfg.Cooldowns[kind] {
		return false
	}
	a.lastAlert[kind] = now
	return true
}

// State returns a snapshot of the analyzer's current belief
func (a *Analyzer) State() Snapshot {
	return Snapshot{
		ObservedPool: a.observedPool,
		WindowLen:    a.window.Len(),
		WindowErrors: a.window.Errors(),
		RatePercent:  a.window.RatePercent(),
		InErrorState: a.inErrorState,
	}
}
