package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nordholz-group/salesplan-api/internal/config"
	"github.com/nordholz-group/salesplan-api/internal/database"
	"github.com/nordholz-group/salesplan-api/internal/erp"
	"github.com/nordholz-group/salesplan-api/internal/http/handler"
	"github.com/nordholz-group/salesplan-api/internal/http/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Router struct {
	cfg              *config.Config
	logger           *zap.Logger
	db               *gorm.DB
	erpClient        *erp.Client
	rateLimiter      *middleware.RateLimiter
	planningHandler  *handler.PlanningHandler
	deviationHandler *handler.DeviationHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	erpClient *erp.Client,
	rateLimiter *middleware.RateLimiter,
	planningHandler *handler.PlanningHandler,
	deviationHandler *handler.DeviationHandler,
) *Router {
	return &Router{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		erpClient:        erpClient,
		rateLimiter:      rateLimiter,
		planningHandler:  planningHandler,
		deviationHandler: deviationHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		// The ERP feed is optional; report it only when configured.
		if rt.erpClient != nil {
			if err := rt.erpClient.Ping(r.Context()); err != nil {
				checks["erp"] = map[string]interface{}{
					"status": "unhealthy",
					"error":  err.Error(),
				}
			} else {
				checks["erp"] = map[string]interface{}{
					"status": "healthy",
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/planning", func(r chi.Router) {
			r.Post("/budgets/generate", rt.planningHandler.GenerateBudgets)
			r.Post("/forecasts/generate", rt.planningHandler.GenerateForecasts)
			r.Post("/sales/import", rt.planningHandler.ImportSales)
		})

		r.Route("/deviations", func(r chi.Router) {
			r.Get("/", rt.deviationHandler.List)
			r.Post("/detect", rt.deviationHandler.Detect)
			r.Patch("/{id}/justified", rt.deviationHandler.SetJustified)
		})
	})

	return r
}
