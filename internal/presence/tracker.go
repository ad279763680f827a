// Package presence tracks how many stream requests are in flight per user
// and turns that count into debounced started/stopped lifecycle signals.
//
// A user becomes "active" on their first concurrent stream request and
// "idle" only after their last request has been gone for a grace period, so
// rapid reconnects do not flap the signals.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notifyhub/backend/internal/clock"
	"github.com/notifyhub/backend/internal/metrics"
	"github.com/notifyhub/backend/internal/signals"
)

// DefaultGracePeriod is how long a user may be without sessions before the
// stopped signal fires.
const DefaultGracePeriod = 30 * time.Second

// stopHandle wraps a scheduled stop callback so the tracker can tell
// whether a firing callback is still the current one for its user.
type stopHandle struct {
	timer clock.Timer
}

// Tracker owns the per-user session accounting. All map mutations happen
// under one mutex; signals fire outside it so subscribers may block without
// stalling other users.
type Tracker struct {
	mu         sync.Mutex
	active     map[string]int
	stopTimers map[string]*stopHandle

	grace time.Duration
	bus   *signals.Bus
	clock clock.Clock
	log   *slog.Logger
}

// NewTracker creates a Tracker firing on the given bus. A zero grace
// period falls back to DefaultGracePeriod.
func NewTracker(bus *signals.Bus, clk clock.Clock, grace time.Duration, log *slog.Logger) *Tracker {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		active:     make(map[string]int),
		stopTimers: make(map[string]*stopHandle),
		grace:      grace,
		bus:        bus,
		clock:      clk,
		log:        log,
	}
}

// EnterSession records a new in-flight stream request for the user.
//
// On the first request for an idle user it either cancels the pending stop
// timer (a reconnect within the grace period continues the logical session
// and fires nothing) or fires the started signal and waits for its
// subscribers. A started-signal failure is returned to the caller and the
// entry is rolled back so the count cannot be stranded.
func (t *Tracker) EnterSession(ctx context.Context, userID string) error {
	t.mu.Lock()
	fireStarted := false
	if _, ok := t.active[userID]; !ok {
		if h, ok := t.stopTimers[userID]; ok {
			delete(t.stopTimers, userID)
			if !h.timer.Stop() {
				// The callback already fired or is firing; it will see its
				// handle is gone and do nothing. Cancellation failure is
				// never surfaced to the caller.
				t.log.Warn("failed to cancel stream stop timer", "user_id", userID)
			}
		} else {
			fireStarted = true
		}
	}
	t.active[userID]++
	t.mu.Unlock()

	metrics.ActiveStreamSessions.Inc()

	if fireStarted {
		if err := t.bus.Fire(ctx, signals.StreamStarted, userID); err != nil {
			t.unwindEntry(userID)
			return err
		}
		metrics.SignalsFired.WithLabelValues(signals.StreamStarted.String()).Inc()
	}
	return nil
}

// ExitSession records the end of one in-flight stream request. When the
// user's count reaches zero the entry is removed and a stop callback is
// scheduled after the grace period.
func (t *Tracker) ExitSession(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.active[userID]
	if !ok {
		t.log.Warn("unbalanced stream session exit", "user_id", userID)
		return
	}

	metrics.ActiveStreamSessions.Dec()

	n--
	if n > 0 {
		t.active[userID] = n
		return
	}

	delete(t.active, userID)
	t.scheduleStopLocked(userID)
}

// ActiveSessions returns the number of in-flight stream requests for the
// user.
func (t *Tracker) ActiveSessions(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[userID]
}

// HasPendingStop reports whether a stop callback is scheduled for the user.
func (t *Tracker) HasPendingStop(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.stopTimers[userID]
	return ok
}

// scheduleStopLocked schedules the stopped signal after the grace period.
// Caller must hold the lock; at this point the user has no count entry, so
// at most one handle per user can exist.
func (t *Tracker) scheduleStopLocked(userID string) {
	h := &stopHandle{}
	h.timer = t.clock.AfterFunc(t.grace, func() {
		t.stopTimerFired(userID, h)
	})
	t.stopTimers[userID] = h
	t.log.Debug("scheduled stream stop timer", "user_id", userID, "grace", t.grace)
}

// stopTimerFired runs when a grace-period timer elapses. A handle that has
// been superseded by a re-entry does nothing.
func (t *Tracker) stopTimerFired(userID string, h *stopHandle) {
	t.mu.Lock()
	cur, ok := t.stopTimers[userID]
	if !ok || cur != h {
		t.mu.Unlock()
		return
	}
	delete(t.stopTimers, userID)
	t.mu.Unlock()

	t.log.Debug("firing stream stopped", "user_id", userID)
	if err := t.bus.Fire(context.Background(), signals.StreamStopped, userID); err != nil {
		t.log.Error("stream stopped signal failed", "user_id", userID, "error", err)
		return
	}
	metrics.SignalsFired.WithLabelValues(signals.StreamStopped.String()).Inc()
}

// unwindEntry reverses an EnterSession increment whose started signal
// failed.
func (t *Tracker) unwindEntry(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	metrics.ActiveStreamSessions.Dec()

	n := t.active[userID] - 1
	if n > 0 {
		t.active[userID] = n
		return
	}
	delete(t.active, userID)
}
