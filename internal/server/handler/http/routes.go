package http

import (
	"net/http"
	"time"

	"github.com/atinyakov/chronos/internal/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures the cross-cutting middleware of NewRouter.
type RouterOptions struct {
	// AllowedOrigin is the single browser origin allowed by CORS.
	AllowedOrigin string
	// RateLimit requests per RateWindow are allowed per client address on
	// the letter endpoints.
	RateLimit  int
	RateWindow time.Duration
	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter constructs and returns an HTTP handler that serves the capsule
// API.
//
// Routes:
//
//	GET    /health                   → health.Health
//	POST   /api/register             → users.Register (rate limited)
//	GET    /api/me                   → users.Me
//	GET    /api/capsules             → capsules.List
//	GET    /api/capsules/stream      → capsules.Stream (server-sent events)
//	POST   /api/capsules             → capsules.Seal
//	POST   /api/capsules/quick       → capsules.Quick
//	POST   /api/capsules/{id}/open   → capsules.Open
//	DELETE /api/capsules/{id}        → capsules.Delete
//	POST   /api/attachments          → capsules.Upload (multipart)
//	POST   /api/letters/generate     → letters.Generate (rate limited)
//	POST   /api/letters/title        → letters.Title (rate limited)
//
// Middleware chain (applied in order):
//  1. RealIP (only with opts.TrustProxy), RequestID and Recoverer from chi
//  2. CORS for opts.AllowedOrigin with credentials
//  3. WithRequestLogging(logger)
//  4. TrackedOwnerAuth, which enforces TLS client certificates outside
//     /health, /api/register and /api/letters and records owner logins
func NewRouter(
	capsules *CapsuleHandler,
	letters *LetterHandler,
	users *UserHandler,
	health *HealthHandler,
	opts RouterOptions,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	if opts.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{opts.AllowedOrigin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}).Handler)

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))
	// Enforce certificate-based authentication
	r.Use(middleware.TrackedOwnerAuth(users.UserService))

	r.Get("/health", health.Health)

	r.Route("/api", func(r chi.Router) {
		r.With(
			middleware.RateLimit(opts.RateLimit, opts.RateWindow),
			chiMiddleware.AllowContentType("application/json"),
		).Post("/register", users.Register)
		r.Get("/me", users.Me)

		r.Route("/capsules", func(r chi.Router) {
			r.Get("/", capsules.List)
			r.Get("/stream", capsules.Stream)
			r.Delete("/{id}", capsules.Delete)

			r.Group(func(r chi.Router) {
				r.Use(chiMiddleware.AllowContentType("application/json"))
				r.Post("/", capsules.Seal)
				r.Post("/quick", capsules.Quick)
				r.Post("/{id}/open", capsules.Open)
			})
		})

		r.With(chiMiddleware.AllowContentType("multipart/form-data")).
			Post("/attachments", capsules.Upload)

		r.Route("/letters", func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimit, opts.RateWindow))
			r.Use(chiMiddleware.AllowContentType("application/json"))
			r.Post("/generate", letters.Generate)
			r.Post("/title", letters.Title)
		})
	})

	return r
}
