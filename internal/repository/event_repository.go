package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/notifyhub/backend/internal/events"
)

// EventRepo persists timeline events in PostgreSQL.
type EventRepo struct {
	db *sqlx.DB
}

// NewEventRepo creates a new EventRepo instance.
func NewEventRepo(db *sqlx.DB) *EventRepo {
	return &EventRepo{db: db}
}

// GetByID returns the event with the given ID, or nil when no such event
// exists. Absence is not an error.
func (r *EventRepo) GetByID(ctx context.Context, eventID string) (*events.Event, error) {
	const query = `
		SELECT event_id, COALESCE(room_id, '') AS room_id, sender, type,
		       content, origin_server_ts, stream_ordering
		FROM events
		WHERE event_id = $1`

	var ev events.Event
	if err := r.db.GetContext(ctx, &ev, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying event %s: %w", eventID, err)
	}
	return &ev, nil
}

// Insert stores an event.
func (r *EventRepo) Insert(ctx context.Context, ev *events.Event) error {
	const query = `
		INSERT INTO events (event_id, room_id, sender, type, content, origin_server_ts, stream_ordering)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`

	if _, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.RoomID, ev.Sender, ev.Type, ev.Content, ev.OriginServerTS, ev.StreamOrdering,
	); err != nil {
		return fmt.Errorf("inserting event %s: %w", ev.ID, err)
	}
	return nil
}

// ListOlderThan returns up to limit events whose origin timestamp is before
// the cutoff, oldest first. Used by the retention archiver.
func (r *EventRepo) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]events.Event, error) {
	const query = `
		SELECT event_id, COALESCE(room_id, '') AS room_id, sender, type,
		       content, origin_server_ts, stream_ordering
		FROM events
		WHERE origin_server_ts < $1
		ORDER BY origin_server_ts ASC
		LIMIT $2`

	var evs []events.Event
	if err := r.db.SelectContext(ctx, &evs, query, cutoff.UnixMilli(), limit); err != nil {
		return nil, fmt.Errorf("listing events older than %s: %w", cutoff, err)
	}
	return evs, nil
}

// DeleteByIDs removes the given events and returns how many rows went away.
func (r *EventRepo) DeleteByIDs(ctx context.Context, eventIDs []string) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM events WHERE event_id IN (?)`, eventIDs)
	if err != nil {
		return 0, fmt.Errorf("building delete query: %w", err)
	}
	query = r.db.Rebind(query)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading delete result: %w", err)
	}
	return n, nil
}
