package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/notifyhub/backend/internal/clock"
	"github.com/notifyhub/backend/internal/events"
	"github.com/notifyhub/backend/internal/notifier"
)

type recordingWriter struct {
	inserted []*events.Event
	err      error
}

func (w *recordingWriter) Insert(ctx context.Context, ev *events.Event) error {
	if w.err != nil {
		return w.err
	}
	w.inserted = append(w.inserted, ev)
	return nil
}

func newIngestRouter(writer *recordingWriter, n *notifier.Notifier) chi.Router {
	handler := NewIngestHandler(writer, n, nil)
	r := chi.NewRouter()
	RegisterIngestRoutes(r, handler, testAuth("@alice:test"))
	return r
}

func TestPostEvent_PublishesAndPersists(t *testing.T) {
	writer := &recordingWriter{}
	n := notifier.New(clock.SystemClock{}, 0, nil)
	router := newIngestRouter(writer, n)
	from := n.CurrentToken()

	body := `{"room_id":"!a:test","type":"m.room.message","content":{"body":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if len(writer.inserted) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(writer.inserted))
	}
	ev := writer.inserted[0]
	if ev.Sender != "@alice:test" {
		t.Errorf("sender = %q, want authenticated user", ev.Sender)
	}
	if ev.RoomID != "!a:test" || ev.Type != "m.room.message" {
		t.Errorf("event fields lost: %+v", ev)
	}
	if ev.StreamOrdering == 0 {
		t.Error("persisted event missing stream ordering")
	}

	// The event is immediately readable from the live stream.
	evs, _, err := n.GetEventsFor(context.Background(), "@alice:test", []string{"!a:test"},
		notifier.PaginationConfig{From: from}, 0, false)
	if err != nil {
		t.Fatalf("GetEventsFor failed: %v", err)
	}
	if len(evs) != 1 || evs[0].ID != ev.ID {
		t.Fatalf("published event not on stream: %v", evs)
	}
}

func TestPostEvent_RejectsInvalidBody(t *testing.T) {
	writer := &recordingWriter{}
	router := newIngestRouter(writer, notifier.New(clock.SystemClock{}, 0, nil))

	for _, body := range []string{
		"not json",
		`{"room_id":"!a:test"}`,
		`{"type":"m.room.message"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
	if len(writer.inserted) != 0 {
		t.Errorf("invalid requests persisted events: %d", len(writer.inserted))
	}
}

func TestPostEvent_PersistFailure(t *testing.T) {
	writer := &recordingWriter{err: context.DeadlineExceeded}
	router := newIngestRouter(writer, notifier.New(clock.SystemClock{}, 0, nil))

	body := `{"type":"m.presence","content":{}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != CodeInternalError {
		t.Errorf("expected %s, got %+v", CodeInternalError, resp.Error)
	}
}
