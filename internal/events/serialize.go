package events

import (
	"encoding/json"

	"github.com/microcosm-cc/bluemonday"
)

// htmlPolicy strips anything outside the user-generated-content allowlist
// from HTML-formatted event bodies before they reach clients.
var htmlPolicy = bluemonday.UGCPolicy()

// Serialize converts a stored event into its client wire shape.
//
// nowMillis is the wall-clock time of serialization and determines the
// reported event age. When asClientEvent is false the raw content is passed
// through untouched; clients asking for the raw format are trusted to do
// their own rendering.
func Serialize(e *Event, nowMillis int64, asClientEvent bool) ClientEvent {
	content := e.Content
	if asClientEvent {
		content = sanitizeContent(content)
	}

	age := nowMillis - e.OriginServerTS
	if age < 0 {
		age = 0
	}

	return ClientEvent{
		ID:             e.ID,
		RoomID:         e.RoomID,
		Sender:         e.Sender,
		Type:           e.Type,
		Content:        content,
		OriginServerTS: e.OriginServerTS,
		Unsigned:       ClientUnsigned{Age: age},
	}
}

// sanitizeContent runs the HTML policy over the formatted_body field, if
// present. Content that is not a JSON object is passed through unchanged.
func sanitizeContent(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}

	var content map[string]any
	if err := json.Unmarshal(raw, &content); err != nil {
		return raw
	}

	body, ok := content["formatted_body"].(string)
	if !ok {
		return raw
	}
	content["formatted_body"] = htmlPolicy.Sanitize(body)

	sanitized, err := json.Marshal(content)
	if err != nil {
		return raw
	}
	return sanitized
}
