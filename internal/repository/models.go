// Package repository provides PostgreSQL persistence for events, room
// memberships, and application services.
package repository

import (
	"errors"
	"time"
)

// Repository errors
var (
	ErrAppServiceNotFound = errors.New("app service not found")
	ErrInvalidToken       = errors.New("invalid app service token")
)

// AppService is an external integration bound to a fixed set of rooms. A
// user belonging to an app service streams that room set instead of their
// joined rooms.
type AppService struct {
	ID        string    `db:"id"`
	SenderID  string    `db:"sender_id"`
	TokenHash string    `db:"token_hash"`
	CreatedAt time.Time `db:"created_at"`
}

// Membership is a user's membership row for a room.
type Membership struct {
	RoomID     string    `db:"room_id"`
	UserID     string    `db:"user_id"`
	Membership string    `db:"membership"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Membership states
const (
	MembershipJoined = "join"
	MembershipLeft   = "leave"
)
