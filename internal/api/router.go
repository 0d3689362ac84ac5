package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/hackgods/ehr-appointment-scheduling/internal/auth"
)

type RouterConfig struct {
	Service      AppointmentService
	Checks       []DependencyCheck
	Logger       zerolog.Logger
	JWTSecret    []byte
	CORSOrigins  []string
	RateLimitRPS int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleProvider, auth.RoleBilling, auth.RoleViewer))
			r.Get("/", listAppointmentsHandler(cfg.Service))
			r.Get("/availability", availabilityHandler(cfg.Service))
			r.Get("/{id}", getAppointmentHandler(cfg.Service))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleProvider))
			r.Post("/", createAppointmentHandler(cfg.Service))
			r.Put("/{id}", updateAppointmentHandler(cfg.Service))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Service))
			r.Delete("/{id}", cancelAppointmentHandler(cfg.Service))
		})
	})

	return r
}
