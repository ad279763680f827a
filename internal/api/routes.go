package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterStreamRoutes registers the event stream routes. All routes
// require authentication via the auth middleware.
func RegisterStreamRoutes(r chi.Router, handler *StreamHandler, authMiddleware func(next http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		// GET /api/v1/stream - long-poll the event stream
		r.Get("/stream", handler.GetStream)

		// GET /api/v1/events/:eventID - fetch a single event
		r.Get("/events/{eventID}", handler.GetEvent)
	})
}

// RegisterIngestRoutes registers the event publish route behind the auth
// middleware.
func RegisterIngestRoutes(r chi.Router, handler *IngestHandler, authMiddleware func(next http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		// POST /api/v1/events - publish an event onto the stream
		r.Post("/events", handler.PostEvent)
	})
}

// RegisterAdminRoutes registers the operational endpoints behind the auth
// middleware.
func RegisterAdminRoutes(r chi.Router, handler *AdminHandler, authMiddleware func(next http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Route("/admin", func(r chi.Router) {
			// POST /api/v1/admin/appservices - register an app service
			r.Post("/appservices", handler.RegisterAppService)

			// POST /api/v1/admin/appservices/:appServiceID/verify - check credentials
			r.Post("/appservices/{appServiceID}/verify", handler.VerifyAppServiceToken)

			// PUT /api/v1/admin/rooms/:roomID/members/:userID - update membership
			r.Put("/rooms/{roomID}/members/{userID}", handler.SetMembership)
		})
	})
}
