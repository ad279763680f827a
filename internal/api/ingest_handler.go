package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	appctx "github.com/notifyhub/backend/internal/context"
	"github.com/notifyhub/backend/internal/events"
	"github.com/notifyhub/backend/internal/notifier"
)

// EventWriter persists published events.
type EventWriter interface {
	Insert(ctx context.Context, ev *events.Event) error
}

// postEventRequest is the body of an event publish call.
type postEventRequest struct {
	RoomID  string          `json:"room_id" validate:"omitempty,max=255"`
	Type    string          `json:"type" validate:"required,max=255"`
	Content json.RawMessage `json:"content" validate:"required"`
}

// IngestHandler accepts events from producers, persists them, and pushes
// them onto the live stream.
type IngestHandler struct {
	writer   EventWriter
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// NewIngestHandler creates a new IngestHandler instance
func NewIngestHandler(writer EventWriter, n *notifier.Notifier, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{
		writer:   writer,
		notifier: n,
		logger:   logger,
	}
}

// PostEvent handles POST /events: publish one event. The authenticated
// user becomes the event sender.
func (h *IngestHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Missing authenticated user")
		return
	}

	var req postEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be valid JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	ev := events.Event{
		ID:             "$" + uuid.New().String(),
		RoomID:         req.RoomID,
		Sender:         userID,
		Type:           req.Type,
		Content:        req.Content,
		OriginServerTS: time.Now().UnixMilli(),
	}

	ev = h.notifier.Publish(ev)
	if err := h.writer.Insert(r.Context(), &ev); err != nil {
		// The event is already on the live stream; persistence failure
		// only affects later catch-up reads and single-event fetches.
		h.logger.Error("event persist failed", "event_id", ev.ID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to store event")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"event_id": ev.ID})
}
