package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// AppServiceRepo persists application-service registrations.
type AppServiceRepo struct {
	db *sqlx.DB
}

// NewAppServiceRepo creates a new AppServiceRepo instance.
func NewAppServiceRepo(db *sqlx.DB) *AppServiceRepo {
	return &AppServiceRepo{db: db}
}

// GetByUserID returns the app service the user belongs to, or nil when the
// user is not an app-service user.
func (r *AppServiceRepo) GetByUserID(ctx context.Context, userID string) (*AppService, error) {
	const query = `
		SELECT id, sender_id, token_hash, created_at
		FROM app_services
		WHERE sender_id = $1`

	var as AppService
	if err := r.db.GetContext(ctx, &as, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying app service for %s: %w", userID, err)
	}
	return &as, nil
}

// Rooms returns the room IDs configured for the app service.
func (r *AppServiceRepo) Rooms(ctx context.Context, appServiceID string) ([]string, error) {
	const query = `
		SELECT room_id
		FROM app_service_rooms
		WHERE app_service_id = $1`

	var roomIDs []string
	if err := r.db.SelectContext(ctx, &roomIDs, query, appServiceID); err != nil {
		return nil, fmt.Errorf("querying rooms for app service %s: %w", appServiceID, err)
	}
	return roomIDs, nil
}

// Register stores an app service with a bcrypt hash of its token.
func (r *AppServiceRepo) Register(ctx context.Context, id, senderID, token string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing app service token: %w", err)
	}

	const query = `
		INSERT INTO app_services (id, sender_id, token_hash)
		VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, id, senderID, string(hash)); err != nil {
		return fmt.Errorf("registering app service %s: %w", id, err)
	}
	return nil
}

// VerifyToken checks a presented token against the stored hash. It returns
// ErrAppServiceNotFound for an unknown ID and ErrInvalidToken on mismatch.
func (r *AppServiceRepo) VerifyToken(ctx context.Context, appServiceID, token string) error {
	const query = `SELECT token_hash FROM app_services WHERE id = $1`

	var hash string
	if err := r.db.GetContext(ctx, &hash, query, appServiceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAppServiceNotFound
		}
		return fmt.Errorf("querying app service %s: %w", appServiceID, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}
