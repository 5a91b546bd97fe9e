package upstream

import (
	"net/url"
	"sync/atomic"
	"time"
)

// Pool is one of the two logical deployment pools
type Pool string

const (
	Blue  Pool = "blue"
	Green Pool = "green"
)

// Valid reports whether p names a known pool
func (p Pool) Valid() bool {
	return p == Blue || p == Green
}

// Other returns the opposite pool
func (p Pool) Other() Pool {
	if p == Blue {
		return Green
	}
	return Blue
}

// Target is one pool's upstream with passive availability tracking.
// Counters are atomic because they are hit from concurrent request handlers.
type Target struct {
	Pool Pool
	URL  *url.URL

	failureThreshold int
	penaltyWindow    time.Duration

	consecutiveFailures atomic.Int64
	penaltyUntil        atomic.Int64 // unix nanos, 0 when not penalized
}

// NewTarget creates a target for one pool
func NewTarget(pool Pool, u *url.URL, failureThreshold int, penaltyWindow time.Duration) *Target {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Target{
		Pool:             pool,
		URL:              u,
		failureThreshold: failureThreshold,
		penaltyWindow:    penaltyWindow,
	}
}

// Addr returns the upstream host:port
func (t *Target) Addr() string {
	return t.URL.Host
}

// Available reports whether the target is eligible to serve at the given
// time. A target inside its penalty window is skipped; once the window
// elapses it is eligible again on the next request.
func (t *Target) Available(now time.Time) bool {
	until := t.penaltyUntil.Load()
	if until == 0 {
		return true
	}
	if now.UnixNano() >= until {
		t.penaltyUntil.CompareAndSwap(until, 0)
		return true
	}
	return false
}

// RecordFailure notes one failed request outcome. Reaching the consecutive
// failure threshold starts the penalty window and resets the counter.
func (t *Target) RecordFailure(now time.Time) {
	failures := t.consecutiveFailures.Add(1)
	if failures >= int64(t.failureThreshold) {
		t.penaltyUntil.Store(now.Add(t.penaltyWindow).UnixNano())
		t.consecutiveFailures.Store(0)
	}
}

// RecordSuccess resets the consecutive failure count
func (t *Target) RecordSuccess() {
	t.consecutiveFailures.Store(0)
}

// ConsecutiveFailures returns the current failure streak
func (t *Target) ConsecutiveFailures() int64 {
	return t.consecutiveFailures.Load()
}
