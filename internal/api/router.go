// Package api is the HTTP surface: routing, JWT auth, and handlers over the
// conversation, itinerary, and storage layers.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
)

// RouterConfig carries the router-level knobs.
type RouterConfig struct {
	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string
}

// NewRouter builds the chi router. Health and auth endpoints are public;
// everything else requires a valid session token.
func NewRouter(handlers *Handlers, auth *Auth, cfg RouterConfig, db dbPinger, redisClient redisPinger, log *slog.Logger) *chi.Mux {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(cfg.RateLimit, cfg.RateWindow))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))
	r.Post("/api/v1/auth/register", handlers.Register)
	r.Post("/api/v1/auth/login", handlers.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/api/v1/conversations", handlers.CreateConversation)
		r.Post("/api/v1/conversations/{id}/messages", handlers.PostMessage)
		r.Post("/api/v1/conversations/{id}/retry", handlers.RetryGeneration)
		r.Delete("/api/v1/conversations/{id}", handlers.DeleteConversation)

		r.Get("/api/v1/trips", handlers.ListTrips)
		r.Post("/api/v1/trips", handlers.CreateTrip)
		r.Get("/api/v1/trips/stats/top-destinations", handlers.TopDestinations)
		r.Get("/api/v1/trips/{id}", handlers.GetTrip)
		r.Put("/api/v1/trips/{id}", handlers.UpdateTrip)
		r.Delete("/api/v1/trips/{id}", handlers.DeleteTrip)
		r.Post("/api/v1/trips/{id}/archive", handlers.ArchiveTrip)
		r.Post("/api/v1/trips/{id}/restore", handlers.RestoreTrip)
		r.Patch("/api/v1/trips/{id}/days/{date}/slots/{index}", handlers.EditSlot)
		r.Post("/api/v1/trips/{id}/days/{date}/slots", handlers.AddSlot)
		r.Put("/api/v1/trips/{id}/calendar", handlers.SyncCalendar)
		r.Get("/api/v1/trips/{id}/calendar.ics", handlers.ExportCalendar)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
