package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notifyhub/backend/internal/repository"
)

// AppServiceRegistry manages app-service registrations and credentials.
type AppServiceRegistry interface {
	Register(ctx context.Context, id, senderID, token string) error
	VerifyToken(ctx context.Context, appServiceID, token string) error
}

// MembershipWriter updates room membership state.
type MembershipWriter interface {
	SetMembership(ctx context.Context, roomID, userID, membership string) error
}

// registerAppServiceRequest is the body of an app-service registration call.
type registerAppServiceRequest struct {
	ID       string `json:"id" validate:"required,max=255"`
	SenderID string `json:"sender_id" validate:"required,max=255"`
	Token    string `json:"token" validate:"required,min=32"`
}

// verifyTokenRequest is the body of an app-service credential check.
type verifyTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// setMembershipRequest is the body of a membership update call.
type setMembershipRequest struct {
	Membership string `json:"membership" validate:"required,oneof=join leave"`
}

// AdminHandler handles operational endpoints: app-service registration and
// room membership management.
type AdminHandler struct {
	appServices AppServiceRegistry
	memberships MembershipWriter
	logger      *slog.Logger
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(appServices AppServiceRegistry, memberships MembershipWriter, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		appServices: appServices,
		memberships: memberships,
		logger:      logger,
	}
}

// RegisterAppService handles POST /admin/appservices.
func (h *AdminHandler) RegisterAppService(w http.ResponseWriter, r *http.Request) {
	var req registerAppServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be valid JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	if err := h.appServices.Register(r.Context(), req.ID, req.SenderID, req.Token); err != nil {
		h.logger.Error("app service registration failed", "app_service_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to register app service")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// VerifyAppServiceToken handles POST /admin/appservices/{appServiceID}/verify.
func (h *AdminHandler) VerifyAppServiceToken(w http.ResponseWriter, r *http.Request) {
	appServiceID := chi.URLParam(r, "appServiceID")

	var req verifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be valid JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	err := h.appServices.VerifyToken(r.Context(), appServiceID, req.Token)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repository.ErrAppServiceNotFound):
		writeError(w, http.StatusNotFound, CodeValidationError, "Unknown app service")
	case errors.Is(err, repository.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "App service token mismatch")
	default:
		h.logger.Error("app service token check failed", "app_service_id", appServiceID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to verify token")
	}
}

// SetMembership handles PUT /admin/rooms/{roomID}/members/{userID}.
func (h *AdminHandler) SetMembership(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	userID := chi.URLParam(r, "userID")

	var req setMembershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be valid JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, err.Error())
		return
	}

	if err := h.memberships.SetMembership(r.Context(), roomID, userID, req.Membership); err != nil {
		h.logger.Error("membership update failed", "room_id", roomID, "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Failed to update membership")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
