// Package signals provides a typed in-process signal bus for stream
// lifecycle notifications. The set of signals is fixed at compile time, so
// firing an undeclared signal cannot happen.
package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Signal identifies a lifecycle signal kind.
type Signal int

const (
	// StreamStarted fires when a user transitions from idle to actively
	// streaming.
	StreamStarted Signal = iota
	// StreamStopped fires after a user's last stream session has been gone
	// for the full grace period.
	StreamStopped

	signalCount
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case StreamStarted:
		return "stream_started"
	case StreamStopped:
		return "stream_stopped"
	default:
		return fmt.Sprintf("signal(%d)", int(s))
	}
}

// Handler receives the user ID carried by a fired signal. Handlers may
// block; Fire waits for them.
type Handler func(ctx context.Context, userID string) error

// Bus dispatches signals to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers [signalCount]map[string]Handler // signal -> subscriptionID -> handler
}

// NewBus creates a Bus with every signal kind declared.
func NewBus() *Bus {
	b := &Bus{}
	for i := range b.handlers {
		b.handlers[i] = make(map[string]Handler)
	}
	return b
}

// Subscribe registers a handler for a signal and returns an unsubscribe
// function.
func (b *Bus) Subscribe(s Signal, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.handlers[s][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[s], id)
	}
}

// Fire invokes every handler subscribed to s with the given user ID and
// waits for all of them. The first handler error aborts the remaining
// handlers and is returned to the caller.
func (b *Bus) Fire(ctx context.Context, s Signal, userID string) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[s]))
	for _, h := range b.handlers[s] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, userID); err != nil {
			return fmt.Errorf("signal %s: %w", s, err)
		}
	}
	return nil
}

// SubscriberCount returns the number of handlers subscribed to s.
func (b *Bus) SubscriberCount(s Signal) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[s])
}
