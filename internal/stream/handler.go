package stream

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/notifyhub/backend/internal/clock"
	"github.com/notifyhub/backend/internal/events"
	"github.com/notifyhub/backend/internal/metrics"
)

// MinTimeoutMillis is the floor applied to client-requested long-poll
// timeouts before jitter.
const MinTimeoutMillis = 500

// Handler fetches the event stream for a user.
type Handler struct {
	eventStore  EventStore
	appServices AppServiceStore
	rooms       RoomResolver
	notifier    Notifier
	tracker     SessionTracker
	clock       clock.Clock
	log         *slog.Logger
}

// NewHandler creates a stream Handler.
func NewHandler(eventStore EventStore, appServices AppServiceStore, rooms RoomResolver, n Notifier, tracker SessionTracker, clk clock.Clock, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		eventStore:  eventStore,
		appServices: appServices,
		rooms:       rooms,
		notifier:    n,
		tracker:     tracker,
		clock:       clk,
		log:         log,
	}
}

// GetStream fetches the next chunk of the event stream for the requesting
// user, waiting up to the (jittered) timeout for new events.
//
// When the request affects presence, the user's session count is held for
// the duration of the call and released on every exit path.
func (h *Handler) GetStream(ctx context.Context, req StreamRequest) (*EventChunk, error) {
	if req.AffectPresence {
		if err := h.tracker.EnterSession(ctx, req.UserID); err != nil {
			return nil, fmt.Errorf("entering stream session: %w", err)
		}
		defer h.tracker.ExitSession(req.UserID)
	}
	return h.getStream(ctx, req)
}

func (h *Handler) getStream(ctx context.Context, req StreamRequest) (*EventChunk, error) {
	roomIDs, err := h.resolveRoomScope(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	timeout := JitterTimeout(req.TimeoutMillis)

	start := h.clock.Now()
	evs, tokens, err := h.notifier.GetEventsFor(ctx, req.UserID, roomIDs, req.Pagination, timeout, req.OnlyRoomEvents)
	metrics.NotifierWaitDuration.Observe(h.clock.Now().Sub(start).Seconds())
	if err != nil {
		return nil, err
	}

	nowMillis := h.clock.NowMillis()
	chunk := make([]events.ClientEvent, 0, len(evs))
	for i := range evs {
		chunk = append(chunk, events.Serialize(&evs[i], nowMillis, req.AsClientEvent))
	}

	metrics.StreamEventsReturned.Observe(float64(len(chunk)))
	h.log.Debug("stream chunk assembled",
		"user_id", req.UserID,
		"events", len(chunk),
		"start", tokens.Start,
		"end", tokens.End,
	)

	return &EventChunk{
		Chunk: chunk,
		Start: tokens.Start,
		End:   tokens.End,
	}, nil
}

// resolveRoomScope returns the deduplicated set of rooms the request
// searches: the app service's configured rooms for app-service users, the
// joined rooms otherwise.
func (h *Handler) resolveRoomScope(ctx context.Context, userID string) ([]string, error) {
	as, err := h.appServices.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving app service: %w", err)
	}

	var roomIDs []string
	if as != nil {
		roomIDs, err = h.appServices.Rooms(ctx, as.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving app service rooms: %w", err)
		}
	} else {
		roomIDs, err = h.rooms.GetJoinedRoomsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(roomIDs))
	deduped := roomIDs[:0]
	for _, r := range roomIDs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		deduped = append(deduped, r)
	}
	return deduped, nil
}

// JitterTimeout clamps a client-requested timeout to MinTimeoutMillis and
// redraws it uniformly within ±10% so clients reconnecting together after a
// restart do not all wake at once. A non-positive timeout stays zero.
func JitterTimeout(timeoutMillis int) int {
	if timeoutMillis <= 0 {
		return 0
	}
	if timeoutMillis < MinTimeoutMillis {
		timeoutMillis = MinTimeoutMillis
	}
	lo := timeoutMillis * 9 / 10
	if lo < MinTimeoutMillis {
		lo = MinTimeoutMillis
	}
	hi := (timeoutMillis*11 + 9) / 10
	return lo + rand.IntN(hi-lo+1)
}
