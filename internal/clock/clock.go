// Package clock provides a time source abstraction so timer-driven logic
// can be tested without real sleeps.
package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the callback. It returns false if the callback has
	// already fired or been stopped.
	Stop() bool
}

// Clock schedules callbacks and reports the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// NowMillis returns the current time in milliseconds since the epoch.
	NowMillis() int64
	// AfterFunc schedules fn to run after d and returns a handle to it.
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock implements Clock using the time package.
type SystemClock struct{}

// NewSystemClock returns a Clock backed by real time.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
