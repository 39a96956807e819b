package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teamtrack-io/teamtrack-engine/pkg/auth"
	"github.com/teamtrack-io/teamtrack-engine/pkg/authz"
	"github.com/teamtrack-io/teamtrack-engine/pkg/cache"
	"github.com/teamtrack-io/teamtrack-engine/pkg/config"
	"github.com/teamtrack-io/teamtrack-engine/pkg/database"
	"github.com/teamtrack-io/teamtrack-engine/pkg/events"
	"github.com/teamtrack-io/teamtrack-engine/pkg/handlers"
	"github.com/teamtrack-io/teamtrack-engine/pkg/logging"
	"github.com/teamtrack-io/teamtrack-engine/pkg/middleware"
	"github.com/teamtrack-io/teamtrack-engine/pkg/repositories"
	"github.com/teamtrack-io/teamtrack-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Migrations run through database/sql, the pool through pgx.
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, migrationsPath, logger); err != nil {
		_ = sqlDB.Close()
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	milestoneCache := cache.NewMilestoneCache(redisClient, logger)
	if milestoneCache == nil {
		logger.Info("Milestone list cache disabled (no Redis host configured)")
	}

	publisher := events.NewNoopPublisher()
	if cfg.AMQP.URL != "" {
		publisher, err = events.NewPublisher(cfg.AMQP.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP broker", zap.Error(err))
		}
	} else {
		logger.Info("Event publishing disabled (no AMQP URL configured)")
	}
	defer publisher.Close()

	var jwksClient *auth.JWKSClient
	if cfg.Auth.EnableVerification {
		jwksClient, err = auth.NewJWKSClient(ctx, cfg.Auth.JWKSURL, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal("Failed to create JWKS client", zap.Error(err))
		}
	}
	authService := auth.NewService(jwksClient, logger, cfg.Auth.EnableVerification)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := database.WithTenantContext(db, logger)

	engine := authz.NewEngine()

	projectRepo := repositories.NewProjectRepository()
	milestoneRepo := repositories.NewMilestoneRepository()
	issueRepo := repositories.NewIssueRepository()
	resourceRepo := repositories.NewResourceRepository()

	projectService := services.NewProjectService(projectRepo, engine, logger)
	milestoneService := services.NewMilestoneService(milestoneRepo, projectRepo, engine, publisher, milestoneCache, logger)
	issueService := services.NewIssueService(issueRepo, projectRepo, engine, logger)
	resourceService := services.NewResourceService(resourceRepo, projectRepo, engine, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewProjectsHandler(projectService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewMilestonesHandler(milestoneService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewIssuesHandler(issueService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)
	handlers.NewResourcesHandler(resourceService, logger).RegisterRoutes(mux, authMiddleware, tenantMiddleware)

	mux.Handle("GET /metrics", promhttp.Handler())

	handler := middleware.RequestLogger(logger)(middleware.Metrics(mux))

	server := &http.Server{
		Addr:         cfg.BindAddr + ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting teamtrack-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// newLogger builds a production logger, or a development logger for
// local environments.
func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
