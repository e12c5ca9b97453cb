// Package router assembles the HTTP dispatch table.
package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/userstats/userstats/internal/handler"
	"github.com/userstats/userstats/internal/middleware"
)

// Options configures the middleware chain and the user mount point.
type Options struct {
	// UsersPrefix is where the user routes are mounted, "/" or "/name".
	UsersPrefix        string
	IsDevelopment      bool
	MaxRequestBodySize int64
	Logger             *slog.Logger
}

// Handlers groups the endpoint handlers served by the router.
type Handlers struct {
	Base    *handler.Handler
	Health  *handler.HealthHandler
	Metrics *handler.MetricsHandler
	Users   *handler.UserHandler
}

// New configures the chi router with all routes and middleware.
func New(opts Options, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Recoverer(opts.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: opts.IsDevelopment}))
	r.Use(middleware.MaxBodySize(opts.MaxRequestBodySize))

	// Probes and metrics
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Get("/metrics", h.Metrics.Metrics)

	if opts.UsersPrefix == "" || opts.UsersPrefix == "/" {
		userRoutes(r, h.Users)
	} else {
		r.Route(opts.UsersPrefix, func(r chi.Router) {
			userRoutes(r, h.Users)
		})
	}

	// 404 and 405 handlers
	r.NotFound(h.Base.NotFound)
	r.MethodNotAllowed(h.Base.MethodNotAllowed)

	return r
}

// userRoutes registers the user resource. The static /stats route takes
// precedence over /{userId}.
func userRoutes(r chi.Router, users *handler.UserHandler) {
	r.Post("/", users.Create)
	r.Get("/", users.List)
	r.Get("/stats", users.Stats)
	r.Get("/{userId}", users.Get)
	r.Patch("/{userId}", users.Update)
	r.Delete("/{userId}", users.Delete)
}
