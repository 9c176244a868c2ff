package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"docportal/docs"
	"docportal/internal/auth"
	"docportal/internal/config"
	"docportal/internal/database"
	"docportal/internal/database/migration"
	handlers "docportal/internal/http/handler"
	"docportal/internal/http/middleware"
	"docportal/internal/logging"
	"docportal/internal/otel"
	"docportal/internal/realtime"
	"docportal/internal/repository/postgres"
	"docportal/internal/service"
	"docportal/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title Document Portal API
// @version 1.0
// @description Document exchange between accounting firms and their clients.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Export.Timezone)
	if err != nil {
		log.Fatalf("invalid EXPORT_TIMEZONE %q: %v", cfg.Export.Timezone, err)
	}

	logger, err := logging.New(cfg.Log, loc)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, loc, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig, loc *time.Location, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(ctx, cfg.Database, cfg.BackendTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, logger.With(zap.String("component", "migration"))); err != nil {
		return err
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	defer hub.Close()

	var notifier realtime.Notifier = hub
	if cfg.Realtime.Backend == "postgres" {
		dsn, err := database.BuildPostgresDSN(cfg.Database)
		if err != nil {
			return err
		}
		notifier = realtime.NewPGNotifier(db, cfg.Realtime.Channel)
		listener := realtime.NewListener(dsn, cfg.Realtime.Channel, hub,
			logger.With(zap.String("component", "listener")))
		go func() {
			if err := listener.Run(ctx); err != nil {
				logger.Error("change listener stopped", zap.Error(err))
			}
		}()
	}

	// Initialize repositories and services
	accountRepo := postgres.NewAccountPostgres(db)
	profileRepo := postgres.NewProfilePostgres(db)
	docRepo := postgres.NewDocumentPostgres(db)

	authBackend := auth.NewService(accountRepo,
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		notifier, hub, logger.With(zap.String("component", "auth")),
		auth.WithMinPasswordLength(cfg.Auth.MinPasswordLength),
	)
	revocations := authBackend.WatchRevocations()
	defer revocations.Close()

	authSvc := service.NewAuthService(authBackend, profileRepo, notifier, logger)
	docSvc := service.NewDocumentService(objStore, docRepo, profileRepo, notifier, hub, service.DocumentOptions{
		MaxUploadBytes:      cfg.Upload.MaxBytes,
		PresignExpiry:       cfg.MinIO.PresignExpiry,
		BackendTimeout:      cfg.BackendTimeout,
		ExportLocation:      loc,
		ChronologicalExport: cfg.Export.ChronologicalDetail,
	}, logger)
	clientSvc := service.NewClientService(profileRepo, hub)

	if cfg.Reconcile.Enabled {
		reconciler := service.NewReconciler(objStore, docRepo, cfg.Reconcile.Grace, logger)
		go reconciler.Run(ctx, cfg.Reconcile.Interval)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    bodyLimit(cfg.Upload.MaxBytes),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	// Structured request logs; renders handler errors so the logged status is final
	app.Use(middleware.Logger(logger.With(zap.String("component", "http"))))
	app.Use(metrics.Handler())

	// Register HTTP routes with injected services
	handlers.RegisterRoutes(app, handlers.Deps{
		DB:        db,
		Auth:      authSvc,
		Documents: docSvc,
		Clients:   clientSvc,
		Metrics:   reg,
		Timeout:   cfg.BackendTimeout,
		Log:       logger.With(zap.String("component", "stream")),
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	listenErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", zap.String("addr", addr))
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// bodyLimit leaves room for multipart framing on top of the largest accepted
// file. Without an upload limit fiber's default applies.
func bodyLimit(maxUpload int64) int {
	if maxUpload <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int(maxUpload) + 1<<20
}
