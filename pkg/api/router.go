package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sallie/companion/config"
	"github.com/sallie/companion/pkg/api/handlers"
	"github.com/sallie/companion/pkg/api/middleware"
	"github.com/sallie/companion/pkg/api/response"
	"github.com/sallie/companion/pkg/logger"
)

// Handlers holds all HTTP handlers. Nil handlers leave their routes unregistered.
type Handlers struct {
	Health       *handlers.HealthHandler
	Memory       *handlers.MemoryHandler
	Emotion      *handlers.EmotionHandler
	Personality  *handlers.PersonalityHandler
	Interactions *handlers.InteractionHandler
	WebSocket    *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder.
	Metrics middleware.MetricsRecorder

	// RateLimiter throttles /api/v1. It is shared with the config watcher so
	// limits can change at runtime.
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}
	r.Use(middleware.CORS(cfg.Server.CORS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "Route not found", middleware.GetRequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.ErrCodeMethodNotAllowed, "Method not allowed", middleware.GetRequestID(r.Context()))
	})

	RegisterRoutes(r, cfg, h)
	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, cfg *config.Config, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		if h.RateLimiter != nil {
			r.Use(h.RateLimiter.Middleware())
		}
		r.Use(middleware.BodyLimit(cfg.Server.HTTP.MaxBodyBytes))
		r.Use(middleware.Timeout(cfg.Server.HTTP.WriteTimeout))

		if h.Interactions != nil {
			r.Post("/interactions", h.Interactions.Observe)
		}

		if h.Memory != nil {
			r.Route("/memories", func(r chi.Router) {
				r.Post("/", h.Memory.StoreMemory)
				r.Get("/", h.Memory.QueryMemory)
				r.Get("/context", h.Memory.GetContext)
				r.Get("/stats", h.Memory.GetStats)
				r.Post("/consolidate", h.Memory.Consolidate)
				r.Get("/partitions/{partition}", h.Memory.ListPartition)
				r.Get("/{id}", h.Memory.GetMemory)
			})
		}

		if h.Emotion != nil {
			r.Route("/emotions", func(r chi.Router) {
				r.Post("/", h.Emotion.Update)
				r.Post("/analyze", h.Emotion.Analyze)
				r.Get("/current", h.Emotion.Current)
				r.Get("/history", h.Emotion.History)
				r.Get("/context", h.Emotion.Context)
			})
		}

		if h.Personality != nil {
			r.Route("/personality", func(r chi.Router) {
				r.Get("/traits", h.Personality.Traits)
				r.Get("/traits/{name}", h.Personality.Trait)
				r.Post("/traits/{name}/adjust", h.Personality.Adjust)
				r.Get("/style", h.Personality.Style)
				r.Post("/evolve", h.Personality.Evolve)
			})
		}
	})

	// The event stream is long-lived; it must not sit behind the request timeout.
	if h.WebSocket != nil && cfg.Server.WebSocket.Enabled {
		r.Get("/ws/events", h.WebSocket.ServeHTTP)
	}

	// Health check routes (not versioned)
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}
}
