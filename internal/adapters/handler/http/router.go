package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/classvote/api/internal/logger"
)

type RouterConfig struct {
	Log            *zap.Logger
	AllowedOrigins []string
	// Metrics is optional. When set, /metrics is served and request latency
	// is recorded.
	Metrics interface {
		Middleware(next http.Handler) http.Handler
		Handler() http.Handler
	}
	Readiness Readiness
}

func NewRouter(cfg RouterConfig, votes *VoteHandler, admin *AdminHandler, events *EventsHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(cfg.Log))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", Health(cfg.Readiness))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/votes", func(r chi.Router) {
		r.Get("/", votes.ListVotes)
		r.Post("/", votes.CreateVote)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", votes.GetVote)
			r.Get("/voters/{number}", votes.VoterStatus)
			r.Post("/submissions", votes.Submit)
			r.Post("/reset-requests", votes.RequestReset)
			r.Get("/results", votes.Results)
			r.Get("/events", events.Stream)

			r.Post("/admin/login", admin.Login)
			r.Group(func(r chi.Router) {
				r.Use(admin.RequireAdmin)
				r.Get("/admin", admin.Panel)
				r.Delete("/admin", admin.DeleteVote)
				r.Patch("/admin/status", admin.UpdateStatus)
				r.Post("/admin/reset-requests/{requestID}/approve", admin.ApproveReset)
				r.Post("/admin/summary", admin.Summarize)
			})
		})
	})

	return r
}
