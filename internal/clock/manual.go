package clock

import (
	"sort"
	"sync"
	"time"
)

// ManualClock implements Clock with a manually advanced time source.
// Callbacks scheduled with AfterFunc fire synchronously from Advance,
// in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

// NewManualClock returns a ManualClock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) NowMillis() int64 {
	return c.Now().UnixMilli()
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &manualTimer{
		clock:    c,
		deadline: c.now.Add(d),
		fn:       fn,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d and fires every pending callback
// whose deadline has been reached, in deadline order. Callbacks run
// without the clock lock held, so they may schedule or stop timers.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*manualTimer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, t := range due {
		t.fired = true
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// PendingTimers returns the number of callbacks not yet fired or stopped.
func (c *ManualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}
