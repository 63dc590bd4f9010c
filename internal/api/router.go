package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/estimabot/internal/middleware"
)

// Routes groups the handlers mounted on the router. Metrics and Webhook are
// optional.
type Routes struct {
	Health        *Handler
	Metrics       http.Handler
	Webhook       http.Handler
	WebhookSecret string
}

// NewRouter builds the chi router.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/healthz", rt.Health.Health)
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}
	if rt.Webhook != nil {
		r.With(
			middleware.RequireSecret(rt.WebhookSecret),
			chiMiddleware.Timeout(10*time.Second),
		).Post("/telegram/{secret}", rt.Webhook.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, "not found")
	})
	return r
}
