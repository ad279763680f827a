package stream

import (
	"context"
	"fmt"

	"github.com/notifyhub/backend/internal/events"
)

// Retriever fetches single events, enforcing room-membership authorization
// for room events.
type Retriever struct {
	store EventStore
	rooms RoomResolver
}

// NewRetriever creates a Retriever.
func NewRetriever(store EventStore, rooms RoomResolver) *Retriever {
	return &Retriever{store: store, rooms: rooms}
}

// GetEvent returns the event with the given ID, or nil when no such event
// exists; absence is a valid outcome, not an error.
//
// For an event associated with a room the caller must be joined to that
// room; otherwise the membership check's authorization error is returned
// and the event withheld. Account-scoped events need no check.
func (r *Retriever) GetEvent(ctx context.Context, userID, eventID string) (*events.Event, error) {
	ev, err := r.store.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("fetching event %s: %w", eventID, err)
	}
	if ev == nil {
		return nil, nil
	}

	if ev.HasRoom() {
		if err := r.rooms.CheckJoinedRoom(ctx, ev.RoomID, userID); err != nil {
			return nil, err
		}
	}
	return ev, nil
}
