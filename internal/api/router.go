package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/appointment-queue/pkg/logging"
)

type RouterConfig struct {
	Service    QueueService
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	Logger     *logging.Logger
	Registry   *prometheus.Registry
	JWTSecret  string
	Env        string
	Version    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics stay unauthenticated
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/status", setStatusHandler(cfg.Service))
		r.Post("/appointments/{id}/phase", setPhaseHandler(cfg.Service))
		r.Post("/appointments/{id}/move-up", moveHandler(cfg.Service, true))
		r.Post("/appointments/{id}/move-down", moveHandler(cfg.Service, false))
		r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Service))
		r.Post("/appointments/{id}/no-show", noShowHandler(cfg.Service))

		r.Get("/queues/{doctorID}/{date}", getQueueHandler(cfg.Service))
		r.Put("/queues/{doctorID}/{date}/order", reorderQueueHandler(cfg.Service))
	})

	return r
}
