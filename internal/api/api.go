// Package api is the HTTP API surface (C8): CRUD over Source, Destination
// and SourcePath, sync-trigger and status endpoints, health, and the
// scheduler register/cancel hooks every mutation must call.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RobbyV2/caldav-ics-sync/internal/scheduler"
	"github.com/RobbyV2/caldav-ics-sync/internal/store"
)

type Handler struct {
	Store         store.Store
	Scheduler     *scheduler.Scheduler
	Logger        *zap.Logger
	ForwardLogger *zap.Logger
	ReverseLogger *zap.Logger
	Validate      *validator.Validate
	StartTime     time.Time
}

func NewHandler(st store.Store, sched *scheduler.Scheduler, logger *zap.Logger) *Handler {
	return &Handler{
		Store:         st,
		Scheduler:     sched,
		Logger:        logger,
		ForwardLogger: logger.Named("sync.forward"),
		ReverseLogger: logger.Named("sync.reverse"),
		Validate:      validator.New(),
		StartTime:     time.Now(),
	}
}

// Routes mounts the full /api surface, matching §6.3 exactly.
func Routes(h *Handler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	r.Get("/health/detailed", h.HealthDetailed)
	r.Get("/openapi.json", h.OpenAPI)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sources", func(r chi.Router) {
		r.Get("/", h.ListSources)
		r.Post("/", h.CreateSource)
		r.Put("/{id}", h.UpdateSource)
		r.Delete("/{id}", h.DeleteSource)
		r.Post("/{id}/sync", h.SyncSource)
		r.Get("/{id}/status", h.SourceStatus)
		r.Get("/{id}/paths", h.ListSourcePaths)
		r.Post("/{id}/paths", h.CreateSourcePath)
		r.Put("/{id}/paths/{pathID}", h.UpdateSourcePath)
		r.Delete("/{id}/paths/{pathID}", h.DeleteSourcePath)
	})

	r.Route("/destinations", func(r chi.Router) {
		r.Get("/", h.ListDestinations)
		r.Post("/", h.CreateDestination)
		r.Get("/check-overlap", h.CheckOverlap)
		r.Put("/{id}", h.UpdateDestination)
		r.Delete("/{id}", h.DeleteDestination)
		r.Post("/{id}/sync", h.SyncDestination)
	})

	return r
}
