// Package api provides the HTTP handlers translating requests into calls on
// the event-stream core.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appctx "github.com/notifyhub/backend/internal/context"
	"github.com/notifyhub/backend/internal/events"
	"github.com/notifyhub/backend/internal/notifier"
	"github.com/notifyhub/backend/internal/rooms"
	"github.com/notifyhub/backend/internal/stream"
)

// Error codes for stream operations
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeEventNotFound    = "EVENT_NOT_FOUND"
	CodeAccessDenied     = "RESOURCE_ACCESS_DENIED"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeAuthTokenInvalid = "AUTH_TOKEN_INVALID"
)

// APIResponse represents the standard API response format
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError represents the error detail in API response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// streamQuery is the validated query-parameter set of a stream request.
type streamQuery struct {
	Timeout        int    `validate:"gte=0"`
	From           string `validate:"omitempty,startswith=s"`
	Limit          int    `validate:"gte=0,lte=1000"`
	Raw            bool
	OnlyRoomEvents bool
	SetPresence    string `validate:"omitempty,oneof=online offline"`
}

var validate = validator.New()

// StreamHandler handles HTTP requests for the event stream endpoints
type StreamHandler struct {
	streams      *stream.Handler
	retriever    *stream.Retriever
	defaultLimit int
	maxTimeout   time.Duration
	logger       *slog.Logger
}

// NewStreamHandler creates a new StreamHandler instance
func NewStreamHandler(streams *stream.Handler, retriever *stream.Retriever, defaultLimit int, maxTimeout time.Duration, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		streams:      streams,
		retriever:    retriever,
		defaultLimit: defaultLimit,
		maxTimeout:   maxTimeout,
		logger:       logger,
	}
}

// GetStream handles GET /stream: a long-poll read of the user's event
// stream.
func (h *StreamHandler) GetStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Missing authenticated user")
		return
	}

	q, err := h.parseStreamQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	chunk, err := h.streams.GetStream(r.Context(), stream.StreamRequest{
		UserID: userID,
		Pagination: notifier.PaginationConfig{
			From:  q.From,
			Limit: q.Limit,
		},
		TimeoutMillis:  q.Timeout,
		AsClientEvent:  !q.Raw,
		AffectPresence: q.SetPresence != "offline",
		OnlyRoomEvents: q.OnlyRoomEvents,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away mid-poll; nothing to write.
			return
		}
		if errors.Is(err, notifier.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid pagination token")
			return
		}
		h.logger.Error("stream fetch failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to fetch event stream")
		return
	}

	writeJSON(w, http.StatusOK, chunk)
}

// GetEvent handles GET /events/{eventID}: a single event fetch behind the
// room-membership gate.
func (h *StreamHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := appctx.ExtractUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Missing authenticated user")
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Event ID is required")
		return
	}

	ev, err := h.retriever.GetEvent(r.Context(), userID, eventID)
	if err != nil {
		if errors.Is(err, rooms.ErrNotInRoom) {
			writeError(w, http.StatusForbidden, CodeAccessDenied, "You are not joined to this event's room")
			return
		}
		h.logger.Error("event fetch failed", "user_id", userID, "event_id", eventID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to fetch event")
		return
	}
	if ev == nil {
		writeError(w, http.StatusNotFound, CodeEventNotFound, "Event not found")
		return
	}

	writeJSON(w, http.StatusOK, events.Serialize(ev, time.Now().UnixMilli(), true))
}

// parseStreamQuery reads and validates the stream query parameters.
func (h *StreamHandler) parseStreamQuery(r *http.Request) (*streamQuery, error) {
	q := &streamQuery{
		From:        r.URL.Query().Get("from"),
		Limit:       h.defaultLimit,
		SetPresence: r.URL.Query().Get("set_presence"),
	}

	if v := r.URL.Query().Get("timeout"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("timeout must be an integer number of milliseconds")
		}
		q.Timeout = timeout
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.New("limit must be an integer")
		}
		q.Limit = limit
	}
	q.Raw = r.URL.Query().Get("raw") == "true"
	q.OnlyRoomEvents = r.URL.Query().Get("only_room_events") == "true"

	if err := validate.Struct(q); err != nil {
		return nil, err
	}

	if max := int(h.maxTimeout.Milliseconds()); q.Timeout > max {
		q.Timeout = max
	}
	return q, nil
}

// writeJSON writes a successful API response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// writeError writes an error API response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	})
}
