package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwell-notes/inkwell/internal/database"
	mw "github.com/inkwell-notes/inkwell/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Guest    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Note handlers
	CreateNote          http.HandlerFunc
	ListNotes           http.HandlerFunc
	GetNote             http.HandlerFunc
	UpdateNote          http.HandlerFunc
	DeleteNote          http.HandlerFunc
	GetSharedNote       http.HandlerFunc
	OwnershipMiddleware func(http.Handler) http.Handler

	// Polish handlers
	Polish   http.HandlerFunc
	GetQuota http.HandlerFunc
	TopUp    http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
	PolishRateLimiter  func(http.Handler) http.Handler

	// NotifierHealthy reports alert-channel health for the readiness probe;
	// nil means no channel is configured.
	NotifierHealthy func() bool
}

func NewRouter(pool *pgxpool.Pool, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and the alert channel
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"notifier": "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if cfg.NotifierHealthy == nil {
			health["notifier"] = "not configured"
		} else if !cfg.NotifierHealthy() {
			// Alerts are fire-and-forget, so a down notifier degrades the
			// report without failing readiness.
			health["notifier"] = "unhealthy"
			health["status"] = "degraded"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/guest", h.Guest)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Shared notes are public by slug
		r.Get("/public/notes/{slug}", h.GetSharedNote)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Note routes
			r.Route("/notes", func(r chi.Router) {
				r.Post("/", h.CreateNote)
				r.Get("/", h.ListNotes)

				r.Route("/{noteID}", func(r chi.Router) {
					r.Use(h.OwnershipMiddleware)
					r.Get("/", h.GetNote)
					r.Put("/", h.UpdateNote)
					r.Delete("/", h.DeleteNote)
				})
			})

			// AI polish routes
			r.Route("/ai", func(r chi.Router) {
				r.Get("/quota", h.GetQuota)

				r.Group(func(r chi.Router) {
					if cfg.PolishRateLimiter != nil {
						r.Use(cfg.PolishRateLimiter)
					}
					r.Post("/polish", h.Polish)
				})
			})

			// Billing routes
			r.Post("/billing/topup", h.TopUp)
		})
	})

	return r
}
