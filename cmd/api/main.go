package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/thebenmerlin/material-management-api/internal/app"
	"github.com/thebenmerlin/material-management-api/internal/auth"
	"github.com/thebenmerlin/material-management-api/internal/dashboard"
	"github.com/thebenmerlin/material-management-api/internal/directory"
	"github.com/thebenmerlin/material-management-api/internal/indents"
	"github.com/thebenmerlin/material-management-api/internal/materials"
	"github.com/thebenmerlin/material-management-api/internal/observability"
	"github.com/thebenmerlin/material-management-api/internal/orders"
	"github.com/thebenmerlin/material-management-api/internal/platform/cache"
	"github.com/thebenmerlin/material-management-api/internal/platform/db"
	"github.com/thebenmerlin/material-management-api/internal/platform/objstore"
	"github.com/thebenmerlin/material-management-api/internal/receipts"
	"github.com/thebenmerlin/material-management-api/internal/reports"
	"github.com/thebenmerlin/material-management-api/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
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

	images, err := objstore.New(ctx, objstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("connect object store", slog.Any("error", err))
		os.Exit(1)
	}

	users := directory.NewRepository(dbpool)
	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(users)
	authHandler := auth.NewHandler(logger, authService, tokenIssuer)
	authMiddleware := &auth.Middleware{Issuer: tokenIssuer, Service: authService, Logger: logger}

	materialsService := materials.NewService(materials.NewRepository(dbpool))
	materialsHandler := materials.NewHandler(logger, materialsService)

	indentsService := indents.NewService(indents.NewRepository(dbpool), materialsService)
	indentsHandler := indents.NewHandler(logger, indentsService)

	ordersService := orders.NewService(orders.NewRepository(dbpool))
	ordersHandler := orders.NewHandler(logger, ordersService)

	receiptsService := receipts.NewService(receipts.NewRepository(dbpool), images)
	receiptsHandler := receipts.NewHandler(logger, receiptsService, receipts.UploadLimits{
		MaxFiles:    cfg.UploadMaxFiles,
		MaxFileSize: cfg.UploadMaxFileSize,
	})

	dashboardService := dashboard.NewService(dashboard.NewRepository(dbpool), redisClient, cfg.DashboardCacheTTL, logger)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	reportsService := reports.NewService(reports.NewRepository(dbpool), logger)
	reportsHandler := reports.NewHandler(logger, reportsService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		AuthMiddleware:   authMiddleware,
		MaterialsHandler: materialsHandler,
		IndentsHandler:   indentsHandler,
		OrdersHandler:    ordersHandler,
		ReceiptsHandler:  receiptsHandler,
		DashboardHandler: dashboardHandler,
		ReportsHandler:   reportsHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
