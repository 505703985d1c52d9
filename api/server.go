/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend (credentials enabled
                 so the session cookie travels with fetch calls)
  5. Session:    Cookie -> principal resolution (never aborts)

ROUTE GROUPS:
  /login, /register, /auth/*    Session lifecycle
  /categorie/*                  Category registry
  /permessi/*                   Leave requests + statistics

ROUTE ORDERING:
  /permessi/statistiche is registered inside its own subrouter before
  the /{id} routes; chi matches static segments ahead of parameters, so
  "statistiche" never binds as an id.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Session cookie resolution
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(SessionMiddleware(h.Auth))

	// Session routes
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
	})

	// Category routes
	r.Route("/categorie", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Post("/", h.CreateCategory)
		r.Put("/{id}", h.UpdateCategory)
		r.Delete("/{id}", h.DeleteCategory)
	})

	// Leave request routes
	r.Route("/permessi", func(r chi.Router) {
		r.Get("/", h.ListRequests)
		r.Post("/", h.CreateRequest)
		r.Route("/statistiche", func(r chi.Router) {
			r.Get("/", h.Statistics)
			r.Get("/export", h.ExportStatistics)
		})
		r.Put("/{id}", h.UpdateRequest)
		r.Put("/{id}/valuta", h.EvaluateRequest)
		r.Delete("/{id}", h.DeleteRequest)
	})

	return r
}
