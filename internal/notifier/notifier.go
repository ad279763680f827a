// Package notifier delivers timeline events to long-polling stream
// requests. Events are ordered by a monotonic stream position; callers poll
// from an opaque token and either get buffered events immediately or park
// until a matching event arrives, the timeout elapses, or the request is
// cancelled.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notifyhub/backend/internal/clock"
	"github.com/notifyhub/backend/internal/events"
)

// DefaultBufferSize is how many events are kept for catch-up reads.
const DefaultBufferSize = 1000

// ErrInvalidToken is returned for a from-token the notifier did not mint.
var ErrInvalidToken = fmt.Errorf("invalid stream token")

// TokenPair holds the pagination tokens bracketing a returned chunk.
type TokenPair struct {
	Start string
	End   string
}

// PaginationConfig selects where a stream read begins and how much it may
// return.
type PaginationConfig struct {
	// From is the opaque token of the previous read's End. Empty means
	// "live": read from the current stream position.
	From string
	// Limit caps the number of events returned. Zero means no cap.
	Limit int
}

type waiter struct {
	userID        string
	roomIDs       map[string]struct{}
	onlyRoomEvent bool
	wake          chan struct{}
}

// Notifier is the in-memory event fan-out for long-poll reads.
type Notifier struct {
	mu      sync.Mutex
	buffer  []events.Event
	pos     int64
	waiters map[*waiter]struct{}

	maxBuffer int
	clock     clock.Clock
	log       *slog.Logger
}

// New creates a Notifier keeping up to bufferSize events for catch-up
// reads. A non-positive size falls back to DefaultBufferSize.
func New(clk clock.Clock, bufferSize int, log *slog.Logger) *Notifier {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		waiters:   make(map[*waiter]struct{}),
		maxBuffer: bufferSize,
		clock:     clk,
		log:       log,
	}
}

// Publish appends an event to the stream, assigns its stream ordering, and
// wakes every parked reader whose scope matches it. The returned event
// carries the assigned ordering.
func (n *Notifier) Publish(ev events.Event) events.Event {
	n.mu.Lock()
	n.pos++
	ev.StreamOrdering = n.pos
	n.buffer = append(n.buffer, ev)
	if len(n.buffer) > n.maxBuffer {
		n.buffer = n.buffer[len(n.buffer)-n.maxBuffer:]
	}

	var wake []*waiter
	for w := range n.waiters {
		if matches(&ev, w.userID, w.roomIDs, w.onlyRoomEvent) {
			wake = append(wake, w)
			delete(n.waiters, w)
		}
	}
	n.mu.Unlock()

	for _, w := range wake {
		close(w.wake)
	}
	return ev
}

// CurrentToken returns the token for the current end of the stream.
func (n *Notifier) CurrentToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return formatToken(n.pos)
}

// GetEventsFor returns events for the user within the given room scope,
// starting after the pagination token. When nothing is buffered it waits up
// to timeoutMillis for a matching event; a zero timeout never waits.
func (n *Notifier) GetEventsFor(ctx context.Context, userID string, roomIDs []string, pagin PaginationConfig, timeoutMillis int, onlyRoomEvents bool) ([]events.Event, TokenPair, error) {
	scope := make(map[string]struct{}, len(roomIDs))
	for _, r := range roomIDs {
		scope[r] = struct{}{}
	}

	n.mu.Lock()
	from := n.pos
	if pagin.From != "" {
		p, err := parseToken(pagin.From)
		if err != nil {
			n.mu.Unlock()
			return nil, TokenPair{}, err
		}
		from = p
	}

	var deadline <-chan struct{}
	if timeoutMillis > 0 {
		ch := make(chan struct{})
		t := n.clock.AfterFunc(time.Duration(timeoutMillis)*time.Millisecond, func() {
			close(ch)
		})
		defer t.Stop()
		deadline = ch
	}

	for {
		matched, end := n.collectLocked(userID, scope, from, pagin.Limit, onlyRoomEvents)
		if len(matched) > 0 || timeoutMillis <= 0 {
			n.mu.Unlock()
			return matched, TokenPair{Start: formatToken(from), End: formatToken(end)}, nil
		}

		w := &waiter{
			userID:        userID,
			roomIDs:       scope,
			onlyRoomEvent: onlyRoomEvents,
			wake:          make(chan struct{}),
		}
		n.waiters[w] = struct{}{}
		n.mu.Unlock()

		select {
		case <-w.wake:
		case <-deadline:
			n.remove(w)
			return nil, TokenPair{Start: formatToken(from), End: formatToken(from)}, nil
		case <-ctx.Done():
			n.remove(w)
			return nil, TokenPair{}, ctx.Err()
		}

		n.mu.Lock()
	}
}

// collectLocked gathers buffered events after position from that match the
// scope. It returns the events and the stream position of the last one (or
// from when none matched). Caller must hold the lock.
func (n *Notifier) collectLocked(userID string, scope map[string]struct{}, from int64, limit int, onlyRoomEvents bool) ([]events.Event, int64) {
	var matched []events.Event
	end := from
	for i := range n.buffer {
		ev := &n.buffer[i]
		if ev.StreamOrdering <= from {
			continue
		}
		if !matches(ev, userID, scope, onlyRoomEvents) {
			continue
		}
		matched = append(matched, *ev)
		end = ev.StreamOrdering
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, end
}

func (n *Notifier) remove(w *waiter) {
	n.mu.Lock()
	delete(n.waiters, w)
	n.mu.Unlock()
}

// matches reports whether an event is visible to a reader. Room events
// must fall inside the reader's room scope; account-scoped events (no
// room) are published under the user's own ID and are dropped entirely
// when the reader asked for room events only.
func matches(ev *events.Event, userID string, scope map[string]struct{}, onlyRoomEvents bool) bool {
	if ev.HasRoom() {
		_, ok := scope[ev.RoomID]
		return ok
	}
	if onlyRoomEvents {
		return false
	}
	return ev.Sender == userID
}

func formatToken(pos int64) string {
	return "s" + strconv.FormatInt(pos, 10)
}

func parseToken(tok string) (int64, error) {
	rest, ok := strings.CutPrefix(tok, "s")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidToken, tok)
	}
	pos, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidToken, tok)
	}
	return pos, nil
}
