// Package stream implements the event-stream core: fetching the live event
// stream for a user with presence accounting and timeout jitter, and
// retrieving single events behind a room-membership gate.
package stream

import (
	"context"

	"github.com/notifyhub/backend/internal/events"
	"github.com/notifyhub/backend/internal/notifier"
	"github.com/notifyhub/backend/internal/repository"
)

// StreamRequest is one stream fetch call. Values are read-only for the
// duration of the call.
type StreamRequest struct {
	UserID string
	// Pagination selects where the read starts and how much it returns.
	Pagination notifier.PaginationConfig
	// TimeoutMillis is the client-requested long-poll timeout. Zero means
	// no wait.
	TimeoutMillis int
	// AsClientEvent selects the sanitized client wire format.
	AsClientEvent bool
	// AffectPresence controls whether this request counts toward the
	// user's presence accounting.
	AffectPresence bool
	// OnlyRoomEvents drops account-scoped events from the result.
	OnlyRoomEvents bool
}

// EventChunk is one page of the event stream.
type EventChunk struct {
	Chunk []events.ClientEvent `json:"chunk"`
	Start string               `json:"start"`
	End   string               `json:"end"`
}

// EventStore fetches single events.
type EventStore interface {
	// GetByID returns the event, or nil when it does not exist.
	GetByID(ctx context.Context, eventID string) (*events.Event, error)
}

// AppServiceStore resolves app-service bindings and their room sets.
type AppServiceStore interface {
	// GetByUserID returns the app service the user belongs to, or nil.
	GetByUserID(ctx context.Context, userID string) (*repository.AppService, error)
	// Rooms returns the room IDs configured for the app service.
	Rooms(ctx context.Context, appServiceID string) ([]string, error)
}

// RoomResolver answers membership questions.
type RoomResolver interface {
	GetJoinedRoomsForUser(ctx context.Context, userID string) ([]string, error)
	CheckJoinedRoom(ctx context.Context, roomID, userID string) error
}

// Notifier performs the long-poll wait and event matching.
type Notifier interface {
	GetEventsFor(ctx context.Context, userID string, roomIDs []string, pagin notifier.PaginationConfig, timeoutMillis int, onlyRoomEvents bool) ([]events.Event, notifier.TokenPair, error)
}

// SessionTracker does the per-user presence accounting around stream
// fetches.
type SessionTracker interface {
	EnterSession(ctx context.Context, userID string) error
	ExitSession(userID string)
}
