package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nordholz-group/salesplan-api/internal/config"
	"github.com/nordholz-group/salesplan-api/internal/database"
	"github.com/nordholz-group/salesplan-api/internal/erp"
	"github.com/nordholz-group/salesplan-api/internal/http/handler"
	"github.com/nordholz-group/salesplan-api/internal/http/middleware"
	"github.com/nordholz-group/salesplan-api/internal/http/router"
	"github.com/nordholz-group/salesplan-api/internal/jobs"
	"github.com/nordholz-group/salesplan-api/internal/logger"
	"github.com/nordholz-group/salesplan-api/internal/repository"
	"github.com/nordholz-group/salesplan-api/internal/service"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize ERP sales feed connection (optional, read-only).
	// The app continues without it when not configured.
	var erpClient *erp.Client
	if cfg.ERP.Enabled {
		erpClient, err = erp.NewClient(&cfg.ERP, log)
		if err != nil {
			log.Warn("ERP connection failed, continuing without the sales feed",
				zap.Error(err),
			)
		} else if erpClient != nil {
			log.Info("ERP sales feed connected",
				zap.Int("max_open_conns", cfg.ERP.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.ERP.QueryTimeout),
			)
		}
	} else {
		log.Info("ERP sales feed not configured, skipping")
	}

	// Initialize services
	clock := service.SystemClock{}
	lockRepo := repository.NewJobLockRepository(db)
	locks := service.NewJobLockManager(lockRepo, clock, cfg.Jobs.LockTTL(), log)

	refs := repository.NewReferenceRepository(db)
	seasonality := service.NewSeasonalityResolver(refs)
	converter := service.NewUnitConverter(refs)

	extraQuotaService := service.NewExtraQuotaService(db, seasonality, converter)
	budgetService := service.NewBudgetService(db, seasonality, locks, clock, log)
	deviationService := service.NewDeviationService(db, extraQuotaService, locks, clock, log)
	importService := service.NewSalesImportService(db, erpClient, locks, clock, log)

	// Initialize middleware and handlers
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	planningHandler := handler.NewPlanningHandler(budgetService, importService, log)
	deviationHandler := handler.NewDeviationHandler(deviationService, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		erpClient,
		rateLimiter,
		planningHandler,
		deviationHandler,
	)

	// Initialize and start scheduler for background jobs
	scheduler := jobs.NewScheduler(log)
	if err := jobs.RegisterDeviationJob(
		scheduler,
		deviationService,
		log,
		cfg.Jobs.DeviationCron,
		cfg.Jobs.JobTimeoutDuration(),
	); err != nil {
		log.Error("Failed to register deviation detection job", zap.Error(err))
	}
	if erpClient != nil {
		if err := jobs.RegisterERPImportJob(
			scheduler,
			importService,
			log,
			cfg.Jobs.ERPImportCron,
			cfg.Jobs.JobTimeoutDuration(),
		); err != nil {
			log.Error("Failed to register ERP import job", zap.Error(err))
		}
	}
	scheduler.Start()
	log.Info("Scheduler started",
		zap.Strings("jobs", scheduler.GetJobNames()),
		zap.String("deviation_cron", cfg.Jobs.DeviationCron),
		zap.String("erp_import_cron", cfg.Jobs.ERPImportCron),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		stopCtx := scheduler.Stop()
		<-stopCtx.Done()
		log.Info("Scheduler stopped")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if erpClient != nil {
			if err := erpClient.Close(); err != nil {
				log.Warn("Error closing ERP connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
