package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nash0810/failsafe/internal/accesslog"
)

// fakeClock lets tests advance time deterministically
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	analyzer *Analyzer
	clock    *fakeClock
	alerts   []Alert
}

func newHarness(windowSize, minFill int, threshold float64, cooldown time.Duration) *harness {
	h := &harness{
		clock: &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	cfg := Config{
		WindowSize:       windowSize,
		MinWindowFill:    minFill,
		ThresholdPercent: threshold,
		Cooldowns: map[Kind]time.Duration{
			KindFailover:  cooldown,
			KindErrorRate: cooldown,
			KindRecovery:  cooldown,
		},
	}
	h.analyzer = New(cfg, h.clock, func(a Alert) { h.alerts = append(h.alerts, a) })
	return h
}

func (h *harness) feed(status int, pool string) {
	h.analyzer.Process(accesslog.Record{
		Timestamp: h.clock.Now(),
		Status:    status,
		Pool:      pool,
	})
}

func (h *harness) ofKind(kind Kind) []Alert {
	var out []Alert
	for _, a := range h.alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// TestThresholdBoundaryExact: threshold 50%; five errors then five
// successes sit exactly at the boundary and must not fire; a sixth error
// pushes past it and fires exactly once.
func TestThresholdBoundaryExact(t *testing.T) {
	h := newHarness(20, 10, 50, 5*time.Minute)

	for i := 0; i < 5; i++ {
		h.feed(500, "blue")
	}
	for i := 0; i < 5; i++ {
		h.feed(200, "blue")
	}
	assert.Empty(t, h.ofKind(KindErrorRate), "exactly at threshold must not fire")

	h.feed(500, "blue")
	alerts := h.ofKind(KindErrorRate)
	require.Len(t, alerts, 1)
	assert.Equal(t, 6, alerts[0].Errors)
	assert.Equal(t, 11, alerts[0].WindowSize)
	assert.InDelta(t, 100.0*6/11, alerts[0].RatePercent, 0.001)
}

// TestFailoverDetection: ten blue records then one green produce exactly
// one failover alert and flip the observed pool.
func TestFailoverDetection(t *testing.T) {
	h := newHarness(200, 50, 2, 5*time.Minute)

	for i := 0; i < 10; i++ {
		h.feed(200, "blue")
	}
	h.feed(200, "green")

	alerts := h.ofKind(KindFailover)
	require.Len(t, alerts, 1)
	assert.Equal(t, "blue", alerts[0].PreviousPool)
	assert.Equal(t, "green", alerts[0].CurrentPool)
	assert.Equal(t, "green", h.analyzer.State().ObservedPool)
}

// TestFirstRecordInitializesWithoutAlert: the very first resolvable record
// sets the observed pool silently.
func TestFirstRecordInitializesWithoutAlert(t *testing.T) {
	h := newHarness(200, 50, 2, 5*time.Minute)

	h.feed(200, "green")

	assert.Empty(t, h.ofKind(KindFailover))
	assert.Equal(t, "green", h.analyzer.State().ObservedPool)
}

// TestRecovery: after an error-rate alert, a run of successes flushes the
// window below the threshold and fires exactly one recovery alert.
func TestRecovery(t *testing.T) {
	h := newHarness(10, 10, 50, time.Hour)

	for i := 0; i < 4; i++ {
		h.feed(200, "blue")
	}
	for i := 0; i < 6; i++ {
		h.feed(500, "blue")
	}
	require.Len(t, h.ofKind(KindErrorRate), 1)
	assert.True(t, h.analyzer.State().InErrorState)

	for i := 0; i < 10; i++ {
		h.feed(200, "blue")
	}

	recoveries := h.ofKind(KindRecovery)
	require.Len(t, recoveries, 1)
	assert.False(t, h.analyzer.State().InErrorState)
	assert.Len(t, h.ofKind(KindErrorRate), 1, "repeat suppressed by cooldown")
}

// TestUnresolvedPoolNeverChangesObserved: a record with an empty pool
// counts in the window but never triggers or resets failover detection.
func TestUnresolvedPoolNeverChangesObserved(t *testing.T) {
	h := newHarness(200, 50, 2, 5*time.Minute)

	h.feed(200, "blue")
	h.feed(502, "") // both upstreams failed
	h.feed(200, "blue")

	assert.Empty(t, h.ofKind(KindFailover))
	assert.Equal(t, "blue", h.analyzer.State().ObservedPool)
	assert.Equal(t, 1, h.analyzer.State().WindowErrors)

	// blue -> (unresolved) -> green still counts as exactly one change
	h.feed(500, "")
	h.feed(200, "green")
	require.Len(t, h.ofKind(KindFailover), 1)
}

// TestMinWindowFillGate: no error-rate or recovery evaluation below the
// configured minimum fill, regardless of how bad the ratio looks.
func TestMinWindowFillGate(t *testing.T) {
	h := newHarness(200, 50, 2, 5*time.Minute)

	for i := 0; i < 49; i++ {
		h.feed(500, "blue")
	}
	assert.Empty(t, h.ofKind(KindErrorRate), "49 samples is below the 50 minimum")

	h.feed(500, "blue")
	assert.Len(t, h.ofKind(KindErrorRate), 1, "50th sample enables evaluation")
}

// TestCooldownSuppression: no two alerts of one kind closer than the
// cooldown, while internal state keeps updating underneath.
func TestCooldownSuppression(t *testing.T) {
	h := newHarness(200, 1, 2, 5*time.Minute)

	h.feed(200, "blue")
	h.feed(200, "green") // fires failover
	h.feed(200, "blue")  // suppressed, but observed pool still flips
	require.Len(t, h.ofKind(KindFailover), 1)
	assert.Equal(t, "blue", h.analyzer.State().ObservedPool)

	h.clock.Advance(5 * time.Minute)
	h.feed(200, "green") // cooldown elapsed (>= boundary), fires again
	alerts := h.ofKind(KindFailover)
	require.Len(t, alerts, 2)
	assert.GreaterOrEqual(t, alerts[1].Time.Sub(alerts[0].Time), 5*time.Minute)
	// The suppressed flip was not lost: this alert names blue as previous
	assert.Equal(t, "blue", alerts[1].PreviousPool)
}

// TestErrorAlertRepeatsAfterCooldown: a persistent error condition
// re-alerts once per cooldown interval.
func TestErrorAlertRepeatsAfterCooldown(t *testing.T) {
	h := newHarness(10, 5, 50, time.Minute)

	for i := 0; i < 10; i++ {
		h.feed(500, "blue")
	}
	require.Len(t, h.ofKind(KindErrorRate), 1)

	h.clock.Advance(time.Minute)
	h.feed(500, "blue")
	assert.Len(t, h.ofKind(KindErrorRate), 2)
}

// TestReplayIdempotence: replaying an already-processed suffix while all
// cooldowns are active produces no additional alerts.
func TestReplayIdempotence(t *testing.T) {
	h := newHarness(10, 5, 50, time.Hour)

	suffix := []struct {
		status int
		pool   string
	}{
		{200, "blue"}, {500, "blue"}, {500, "blue"}, {500, "blue"},
		{500, "blue"}, {500, "blue"}, {200, "green"}, {500, "green"},
	}
	for _, r := range suffix {
		h.feed(r.status, r.pool)
	}
	before := len(h.alerts)
	require.Greater(t, before, 0)

	for _, r := range suffix {
		h.feed(r.status, r.pool)
	}
	assert.Equal(t, before, len(h.alerts), "replay must not re-alert inside cooldown")
}

// TestRecoveryFlagClearsUnderCooldown: suppressing the recovery
// notification still clears the alerted-error flag.
func TestRecoveryFlagClearsUnderCooldown(t *testing.T) {
	h := newHarness(10, 5, 50, time.Hour)

	for i := 0; i < 10; i++ {
		h.feed(500, "blue")
	}
	require.True(t, h.analyzer.State().InErrorState)
	// Stamp the recovery cooldown by triggering an early recovery episode
	for i := 0; i < 10; i++ {
		h.feed(200, "blue")
	}
	require.Len(t, h.ofKind(KindRecovery), 1)

	// Second episode inside the cooldown: flag must still clear
	for i := 0; i < 10; i++ {
		h.feed(500, "blue")
	}
	require.True(t, h.analyzer.State().InErrorState)
	for i := 0; i < 10; i++ {
		h.feed(200, "blue")
	}
	assert.False(t, h.analyzer.State().InErrorState)
	assert.Len(t, h.ofKind(KindRecovery), 1, "notification suppressed by cooldown")
}

// TestMalformedRecordsNeverReachAnalyzer documents the contract: parse
// failures are dropped upstream, so Process only ever sees valid records.
// A record with status 0 (transport failure) still counts as an error.
func TestTransportFailureCountsAsError(t *testing.T) {
	h := newHarness(10, 1, 50, time.Minute)

	h.feed(0, "")
	assert.Equal(t, 1, h.analyzer.State().WindowErrors)
}
