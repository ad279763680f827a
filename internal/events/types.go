// Package events provides the timeline event model and client-facing
// serialization for the notification stream.
package events

import "encoding/json"

// Event is a single timeline event as held by the store and the notifier.
// An event with an empty RoomID is account-scoped (for example a presence
// or read-receipt update) and is not subject to room authorization.
type Event struct {
	ID             string          `db:"event_id" json:"event_id"`
	RoomID         string          `db:"room_id" json:"room_id,omitempty"`
	Sender         string          `db:"sender" json:"sender"`
	Type           string          `db:"type" json:"type"`
	Content        json.RawMessage `db:"content" json:"content"`
	OriginServerTS int64           `db:"origin_server_ts" json:"origin_server_ts"`
	StreamOrdering int64           `db:"stream_ordering" json:"-"`
}

// HasRoom reports whether the event is associated with a room.
func (e *Event) HasRoom() bool {
	return e.RoomID != ""
}

// ClientEvent is the wire shape of an event as sent to clients.
type ClientEvent struct {
	ID             string          `json:"event_id"`
	RoomID         string          `json:"room_id,omitempty"`
	Sender         string          `json:"sender"`
	Type           string          `json:"type"`
	Content        json.RawMessage `json:"content"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Unsigned       ClientUnsigned  `json:"unsigned"`
}

// ClientUnsigned carries server-computed metadata attached to a serialized
// event.
type ClientUnsigned struct {
	// Age is how old the event is in milliseconds at serialization time.
	Age int64 `json:"age"`
}
