// Package rooms resolves room membership for stream scoping and event
// authorization.
package rooms

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotInRoom is the authorization failure returned when a user is not
// joined to the room they are trying to read from.
var ErrNotInRoom = errors.New("user not joined to room")

// MembershipStore is the persistence surface the resolver reads from.
type MembershipStore interface {
	// JoinedRooms returns the IDs of every room the user is joined to.
	JoinedRooms(ctx context.Context, userID string) ([]string, error)
	// IsJoined reports whether the user is joined to the room.
	IsJoined(ctx context.Context, roomID, userID string) (bool, error)
}

// Service answers membership questions for the stream core.
type Service struct {
	store MembershipStore
}

// NewService creates a membership resolver over the given store.
func NewService(store MembershipStore) *Service {
	return &Service{store: store}
}

// GetJoinedRoomsForUser returns the rooms the user has joined.
func (s *Service) GetJoinedRoomsForUser(ctx context.Context, userID string) ([]string, error) {
	roomIDs, err := s.store.JoinedRooms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving joined rooms for %s: %w", userID, err)
	}
	return roomIDs, nil
}

// CheckJoinedRoom fails with ErrNotInRoom when the user is not joined to
// the room.
func (s *Service) CheckJoinedRoom(ctx context.Context, roomID, userID string) error {
	joined, err := s.store.IsJoined(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("checking membership of %s in %s: %w", userID, roomID, err)
	}
	if !joined {
		return fmt.Errorf("user %s in room %s: %w", userID, roomID, ErrNotInRoom)
	}
	return nil
}
