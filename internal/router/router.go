package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"planboard-backend/internal/handlers"
	"planboard-backend/internal/middleware"
	"planboard-backend/internal/websocket"
)

func New(
	authenticator *middleware.Authenticator,
	authHandler *handlers.AuthHandler,
	contentHandler *handlers.ContentHandler,
	wsHub *websocket.Hub,
	authLimiter *middleware.RateLimiter,
	allowedOrigins []string,
	demoMode bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Anonymous sockets are allowed; the event carries no data.
	r.Get("/ws", wsHub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(authenticator.Identify)

		// ──── Auth Routes ────
		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})
		r.Post("/logout", authHandler.Logout)

		r.Route("/user", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", authHandler.Me)
			r.Post("/password", authHandler.ChangePassword)
		})

		// ──── Content Routes ────
		r.Route("/contents", func(r chi.Router) {
			r.Use(middleware.RequireAuthUnless(demoMode))
			r.Get("/", contentHandler.List)
			r.Post("/", contentHandler.Create)
			r.Get("/board", contentHandler.Board)
			r.Get("/calendar", contentHandler.Calendar)
			r.Get("/{id}", contentHandler.Get)
			r.Patch("/{id}", contentHandler.Update)
			r.Patch("/{id}/stage", contentHandler.UpdateStage)
			r.Delete("/{id}", contentHandler.Delete)
		})
	})

	return r
}
