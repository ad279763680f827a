package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/notifyhub/backend/internal/repository"
)

type fakeRegistry struct {
	registered map[string]string // id -> token
}

func (f *fakeRegistry) Register(ctx context.Context, id, senderID, token string) error {
	f.registered[id] = token
	return nil
}

func (f *fakeRegistry) VerifyToken(ctx context.Context, appServiceID, token string) error {
	stored, ok := f.registered[appServiceID]
	if !ok {
		return repository.ErrAppServiceNotFound
	}
	if stored != token {
		return repository.ErrInvalidToken
	}
	return nil
}

type fakeMembershipWriter struct {
	set map[string]string // roomID/userID -> membership
}

func (f *fakeMembershipWriter) SetMembership(ctx context.Context, roomID, userID, membership string) error {
	f.set[roomID+"/"+userID] = membership
	return nil
}

func newAdminRouter(reg *fakeRegistry, memberships *fakeMembershipWriter) chi.Router {
	handler := NewAdminHandler(reg, memberships, nil)
	r := chi.NewRouter()
	RegisterAdminRoutes(r, handler, testAuth("@admin:test"))
	return r
}

func TestRegisterAppService(t *testing.T) {
	reg := &fakeRegistry{registered: map[string]string{}}
	router := newAdminRouter(reg, &fakeMembershipWriter{set: map[string]string{}})

	body := `{"id":"bridge-1","sender_id":"@bridge:test","token":"0123456789abcdef0123456789abcdef"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/appservices", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, ok := reg.registered["bridge-1"]; !ok {
		t.Error("app service was not registered")
	}
}

func TestRegisterAppService_RejectsShortToken(t *testing.T) {
	reg := &fakeRegistry{registered: map[string]string{}}
	router := newAdminRouter(reg, &fakeMembershipWriter{set: map[string]string{}})

	body := `{"id":"bridge-1","sender_id":"@bridge:test","token":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/appservices", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(reg.registered) != 0 {
		t.Error("invalid registration was stored")
	}
}

func TestVerifyAppServiceToken(t *testing.T) {
	reg := &fakeRegistry{registered: map[string]string{"bridge-1": "correct-token"}}
	router := newAdminRouter(reg, &fakeMembershipWriter{set: map[string]string{}})

	cases := []struct {
		name   string
		id     string
		token  string
		status int
	}{
		{"valid", "bridge-1", "correct-token", http.StatusNoContent},
		{"wrong token", "bridge-1", "wrong-token", http.StatusUnauthorized},
		{"unknown service", "nope", "correct-token", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := `{"token":"` + tc.token + `"}`
			req := httptest.NewRequest(http.MethodPost, "/admin/appservices/"+tc.id+"/verify", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestSetMembership(t *testing.T) {
	memberships := &fakeMembershipWriter{set: map[string]string{}}
	router := newAdminRouter(&fakeRegistry{registered: map[string]string{}}, memberships)

	req := httptest.NewRequest(http.MethodPut, "/admin/rooms/!a:test/members/@alice:test",
		strings.NewReader(`{"membership":"join"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := memberships.set["!a:test/@alice:test"]; got != "join" {
		t.Errorf("membership = %q, want join", got)
	}
}

func TestSetMembership_RejectsUnknownState(t *testing.T) {
	memberships := &fakeMembershipWriter{set: map[string]string{}}
	router := newAdminRouter(&fakeRegistry{registered: map[string]string{}}, memberships)

	req := httptest.NewRequest(http.MethodPut, "/admin/rooms/!a:test/members/@alice:test",
		strings.NewReader(`{"membership":"banned"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(memberships.set) != 0 {
		t.Error("invalid membership was stored")
	}
}
