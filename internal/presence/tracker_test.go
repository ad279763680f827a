package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/notifyhub/backend/internal/clock"
	"github.com/notifyhub/backend/internal/signals"
)

// signalRecorder counts started/stopped signal deliveries per user.
type signalRecorder struct {
	mu      sync.Mutex
	started map[string]int
	stopped map[string]int
}

func newSignalRecorder(bus *signals.Bus) *signalRecorder {
	r := &signalRecorder{
		started: make(map[string]int),
		stopped: make(map[string]int),
	}
	bus.Subscribe(signals.StreamStarted, func(ctx context.Context, userID string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.started[userID]++
		return nil
	})
	bus.Subscribe(signals.StreamStopped, func(ctx context.Context, userID string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.stopped[userID]++
		return nil
	})
	return r
}

func (r *signalRecorder) startedCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[userID]
}

func (r *signalRecorder) stoppedCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped[userID]
}

func newTestTracker(t *testing.T) (*Tracker, *signalRecorder, *clock.ManualClock) {
	t.Helper()
	bus := signals.NewBus()
	rec := newSignalRecorder(bus)
	clk := clock.NewManualClock(time.Unix(1000, 0))
	tracker := NewTracker(bus, clk, 30*time.Second, nil)
	return tracker, rec, clk
}

func TestTracker_StartedFiresOnFirstEntryOnly(t *testing.T) {
	tracker, rec, _ := newTestTracker(t)

	if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
		t.Fatalf("first enter failed: %v", err)
	}
	if got := rec.startedCount("@alice:test"); got != 1 {
		t.Fatalf("expected 1 started signal, got %d", got)
	}

	if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
		t.Fatalf("second enter failed: %v", err)
	}
	if got := rec.startedCount("@alice:test"); got != 1 {
		t.Errorf("expected started to fire once, got %d", got)
	}
	if got := tracker.ActiveSessions("@alice:test"); got != 2 {
		t.Errorf("expected 2 active sessions, got %d", got)
	}
}

func TestTracker_StoppedFiresAfterGracePeriod(t *testing.T) {
	tracker, rec, clk := newTestTracker(t)

	if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	tracker.ExitSession("@alice:test")

	if got := tracker.ActiveSessions("@alice:test"); got != 0 {
		t.Fatalf("expected 0 active sessions, got %d", got)
	}
	if !tracker.HasPendingStop("@alice:test") {
		t.Fatal("expected a pending stop timer")
	}

	// Just before the grace period: nothing yet.
	clk.Advance(29 * time.Second)
	if got := rec.stoppedCount("@alice:test"); got != 0 {
		t.Fatalf("stopped fired before grace period elapsed: %d", got)
	}

	clk.Advance(2 * time.Second)
	if got := rec.stoppedCount("@alice:test"); got != 1 {
		t.Fatalf("expected 1 stopped signal, got %d", got)
	}
	if tracker.HasPendingStop("@alice:test") {
		t.Error("stop timer should be gone after firing")
	}

	// No repeat fires.
	clk.Advance(5 * time.Minute)
	if got := rec.stoppedCount("@alice:test"); got != 1 {
		t.Errorf("stopped fired again: %d", got)
	}
}

func TestTracker_ReconnectWithinGraceDebounces(t *testing.T) {
	tracker, rec, clk := newTestTracker(t)

	if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
		t.Fatalf("enter failed: %v", err)
	}
	tracker.ExitSession("@alice:test")

	// Reconnect before the grace period elapses.
	clk.Advance(10 * time.Second)
	if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}

	// The cancelled timer must never fire, and the reconnect must not
	// re-announce the session.
	clk.Advance(5 * time.Minute)
	if got := rec.stoppedCount("@alice:test"); got != 0 {
		t.Errorf("stopped fired despite reconnect: %d", got)
	}
	if got := rec.startedCount("@alice:test"); got != 1 {
		t.Errorf("expected started to fire once overall, got %d", got)
	}
	if tracker.HasPendingStop("@alice:test") {
		t.Error("pending stop should have been cancelled")
	}
}

func TestTracker_StartedFailureRollsBackEntry(t *testing.T) {
	bus := signals.NewBus()
	clk := clock.NewManualClock(time.Unix(1000, 0))
	tracker := NewTracker(bus, clk, 30*time.Second, nil)

	fireErr := errors.New("subscriber exploded")
	failNext := true
	bus.Subscribe(signals.StreamStarted, func(ctx context.Context, userID string) error {
		if failNext {
			return fireErr
		}
		return nil
	})

	if err := tracker.EnterSession(context.Background(), "@bob:test"); !errors.Is(err, fireErr) {
		t.Fatalf("expected subscriber error, got %v", err)
	}
	if got := tracker.ActiveSessions("@bob:test"); got != 0 {
		t.Fatalf("failed entry left count at %d", got)
	}

	// A later entry is a fresh idle-to-active transition.
	failNext = false
	if err := tracker.EnterSession(context.Background(), "@bob:test"); err != nil {
		t.Fatalf("enter after failure: %v", err)
	}
	if got := tracker.ActiveSessions("@bob:test"); got != 1 {
		t.Errorf("expected 1 active session, got %d", got)
	}
}

func TestTracker_UnbalancedExitIsIgnored(t *testing.T) {
	tracker, rec, clk := newTestTracker(t)

	tracker.ExitSession("@nobody:test")
	if got := tracker.ActiveSessions("@nobody:test"); got != 0 {
		t.Fatalf("count went negative: %d", got)
	}
	clk.Advance(5 * time.Minute)
	if got := rec.stoppedCount("@nobody:test"); got != 0 {
		t.Errorf("stopped fired for a user who never entered: %d", got)
	}
}

func TestTracker_ConcurrentExitsScheduleOneTimer(t *testing.T) {
	tracker, rec, clk := newTestTracker(t)

	for i := 0; i < 2; i++ {
		if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
			t.Fatalf("enter failed: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.ExitSession("@alice:test")
		}()
	}
	wg.Wait()

	if got := clk.PendingTimers(); got != 1 {
		t.Fatalf("expected exactly 1 pending stop timer, got %d", got)
	}
	clk.Advance(31 * time.Second)
	if got := rec.stoppedCount("@alice:test"); got != 1 {
		t.Errorf("expected 1 stopped signal, got %d", got)
	}
}

// For any interleaving of N enters and M exits (N >= M) the final count is
// N - M and never goes negative in between.
func TestTracker_ConcurrentAccounting(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		enters := rapid.IntRange(1, 20).Draw(t, "enters")
		exits := rapid.IntRange(0, enters).Draw(t, "exits")

		bus := signals.NewBus()
		clk := clock.NewManualClock(time.Unix(1000, 0))
		tracker := NewTracker(bus, clk, 30*time.Second, nil)

		var wg sync.WaitGroup
		for i := 0; i < enters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := tracker.EnterSession(context.Background(), "@carol:test"); err != nil {
					t.Errorf("enter failed: %v", err)
				}
			}()
		}
		wg.Wait()

		for i := 0; i < exits; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tracker.ExitSession("@carol:test")
			}()
		}
		wg.Wait()

		if got := tracker.ActiveSessions("@carol:test"); got != enters-exits {
			t.Fatalf("expected %d active sessions, got %d", enters-exits, got)
		}
	})
}

func TestTracker_UsersAreIndependent(t *testing.T) {
	tracker, rec, clk := newTestTracker(t)

	if err := tracker.EnterSession(context.Background(), "@alice:test"); err != nil {
		t.Fatalf("enter alice: %v", err)
	}
	if err := tracker.EnterSession(context.Background(), "@bob:test"); err != nil {
		t.Fatalf("enter bob: %v", err)
	}

	tracker.ExitSession("@alice:test")
	clk.Advance(31 * time.Second)

	if got := rec.stoppedCount("@alice:test"); got != 1 {
		t.Errorf("expected alice stopped once, got %d", got)
	}
	if got := rec.stoppedCount("@bob:test"); got != 0 {
		t.Errorf("bob stopped despite active session: %d", got)
	}
	if got := tracker.ActiveSessions("@bob:test"); got != 1 {
		t.Errorf("expected bob to stay active, got %d", got)
	}
}
