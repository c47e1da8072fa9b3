package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hireline/hireline/internal/app"
	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/catalog"
	"github.com/hireline/hireline/internal/identity"
	"github.com/hireline/hireline/internal/observability"
	"github.com/hireline/hireline/internal/platform/cache"
	"github.com/hireline/hireline/internal/platform/db"
	"github.com/hireline/hireline/internal/records"
	"github.com/hireline/hireline/internal/roles"
	"github.com/hireline/hireline/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	catalogRepo := catalog.NewRepository(dbpool, logger)
	engine, err := app.NewAuthzEngine(cfg.EngineConfig, catalogRepo, logger, metrics)
	if err != nil {
		logger.Error("build authz engine", slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "hireline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	authzMiddleware := authz.Middleware{
		Engine:   engine,
		Identity: identity.NewSessionIdentity(catalogRepo, logger),
		Logger:   logger,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthzMiddleware:    authzMiddleware,
		SessionHandler:     identity.NewHandler(logger, identity.NewService(catalogRepo), sessionManager, csrfManager),
		PermissionsHandler: authz.NewPermissionsHandler(logger, catalogRepo, authzMiddleware),
		RecordsHandler:     records.NewHandler(logger, records.NewRepository(dbpool), engine.Registry()),
		RolesHandler:       roles.NewHandler(logger, roles.NewService(roles.NewRepository(dbpool, dbpool)), authzMiddleware),
		Metrics:            metrics,
		Health: map[string]app.Pinger{
			"postgres": dbpool,
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
