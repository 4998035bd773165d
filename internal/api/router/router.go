package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/syncai-intake/internal/booking"
	"github.com/wolfman30/syncai-intake/internal/conversation"
	httpmiddleware "github.com/wolfman30/syncai-intake/internal/http/middleware"
	"github.com/wolfman30/syncai-intake/internal/messaging"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// ReadinessCheck reports whether a dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	MessagingHandler    *messaging.Handler
	ConversationHandler *conversation.Handler
	BookingHandler      *booking.Handler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string
	RateLimiter         *httpmiddleware.RateLimiter
	ReadinessChecks     map[string]ReadinessCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", health)
		public.Get("/ready", ready(cfg.ReadinessChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.MessagingHandler != nil {
			public.Post("/webhooks/twilio/messages", cfg.MessagingHandler.TwilioWebhook)
		}
	})

	if cfg.ConversationHandler != nil {
		r.Route("/conversations", func(conv chi.Router) {
			if cfg.RateLimiter != nil {
				conv.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			conv.Post("/message", cfg.ConversationHandler.Message)
			conv.Post("/jobs", cfg.ConversationHandler.Enqueue)
			conv.Get("/jobs/{jobID}", cfg.ConversationHandler.JobStatus)
		})
	}

	// Admin routes are only exposed when a signing secret is configured.
	if cfg.BookingHandler != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Mount("/bookings", cfg.BookingHandler.Routes())
		})
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready runs every check with a shared deadline and reports each failure by name.
func ready(checks map[string]ReadinessCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failures := map[string]string{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failures": failures})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
