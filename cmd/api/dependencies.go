package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/budget-tracker/internal/domain/categorization"
	ruleshandler "github.com/FACorreiaa/budget-tracker/internal/domain/categorization/handler"
	importhandler "github.com/FACorreiaa/budget-tracker/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/budget-tracker/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/budget-tracker/pkg/config"
	"github.com/FACorreiaa/budget-tracker/pkg/db"
	"github.com/FACorreiaa/budget-tracker/pkg/middleware"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// Repositories
	ImportRepo         importrepo.ImportRepository
	CategorizationRepo *categorization.Repository

	// Services
	ImportService         *importservice.ImportService
	CategorizationService *categorization.Service

	// Handlers
	ImportHandler *importhandler.ImportHandler
	RulesHandler  *ruleshandler.RulesHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() {
	d.CategorizationService = categorization.NewService(d.CategorizationRepo, d.Logger)

	// Import service with rule suggestions wired in
	d.ImportService = importservice.NewImportService(d.ImportRepo, d.Logger).
		WithSuggester(newCategorizationAdapter(d.CategorizationService)).
		WithLimits(d.Config.Import.PreviewLimit, d.Config.Import.LookupConcurrency).
		WithDefaultCurrency(d.Config.Import.DefaultCurrency)

	if d.Config.Observability.MetricsEnabled {
		d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		d.ImportService.WithMetrics(importservice.NewMetrics(d.Registry))
	}

	d.Logger.Info("services initialized")
}

func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.RulesHandler = ruleshandler.NewRulesHandler(d.CategorizationService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Router builds the HTTP handler with the middleware chain applied
func (d *Dependencies) Router() http.Handler {
	mux := http.NewServeMux()
	d.ImportHandler.Register(mux)
	d.RulesHandler.Register(mux)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.Pool.Ping(r.Context()); err != nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
		middleware.CORS(d.Config.Server.CORSOrigins),
		middleware.RateLimit(d.Config.Server.RateLimitPerSecond, d.Config.Server.RateLimitBurst),
	)
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
