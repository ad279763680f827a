// Package middleware provides HTTP middleware for the backend API.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/notifyhub/backend/internal/auth"
	appctx "github.com/notifyhub/backend/internal/context"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMiddleware handles JWT authentication for protected routes
type AuthMiddleware struct {
	tokenService *auth.TokenService
}

// NewAuthMiddleware creates a new AuthMiddleware instance
func NewAuthMiddleware(tokenService *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the Bearer token from the Authorization header, or
// the access_token query parameter as a fallback for long-poll clients that
// cannot set headers.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := r.URL.Query().Get("access_token")

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				m.writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_MALFORMED", "Authorization header must be 'Bearer <token>'")
				return
			}
			tokenString = parts[1]
		}

		if tokenString == "" {
			m.writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_MISSING", "Authentication token is required")
			return
		}

		claims, err := m.tokenService.ValidateAccessToken(tokenString)
		if err != nil {
			m.writeError(w, http.StatusUnauthorized, "AUTH_TOKEN_INVALID", "Invalid or expired authentication token")
			return
		}

		ctx := appctx.WithUserID(r.Context(), claims.UserID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeError writes a standard error response
func (m *AuthMiddleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	})
}
