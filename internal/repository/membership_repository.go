package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// MembershipRepo persists room memberships.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo creates a new MembershipRepo instance.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// JoinedRooms returns the IDs of every room the user is joined to.
func (r *MembershipRepo) JoinedRooms(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT room_id
		FROM room_memberships
		WHERE user_id = $1 AND membership = $2`

	var roomIDs []string
	if err := r.db.SelectContext(ctx, &roomIDs, query, userID, MembershipJoined); err != nil {
		return nil, fmt.Errorf("querying joined rooms for %s: %w", userID, err)
	}
	return roomIDs, nil
}

// IsJoined reports whether the user is joined to the room.
func (r *MembershipRepo) IsJoined(ctx context.Context, roomID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM room_memberships
			WHERE room_id = $1 AND user_id = $2 AND membership = $3
		)`

	var joined bool
	if err := r.db.GetContext(ctx, &joined, query, roomID, userID, MembershipJoined); err != nil {
		return false, fmt.Errorf("querying membership of %s in %s: %w", userID, roomID, err)
	}
	return joined, nil
}

// SetMembership upserts a user's membership state for a room.
func (r *MembershipRepo) SetMembership(ctx context.Context, roomID, userID, membership string) error {
	const query = `
		INSERT INTO room_memberships (room_id, user_id, membership)
		VALUES ($1, $2, $3)
		ON CONFLICT (room_id, user_id)
		DO UPDATE SET membership = EXCLUDED.membership, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, roomID, userID, membership); err != nil {
		return fmt.Errorf("setting membership of %s in %s: %w", userID, roomID, err)
	}
	return nil
}
