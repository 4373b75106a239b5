package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/productdesk/productdesk/internal/app"
	"github.com/productdesk/productdesk/internal/observability"
	"github.com/productdesk/productdesk/internal/platform/cache"
	"github.com/productdesk/productdesk/internal/productapi"
	"github.com/productdesk/productdesk/internal/products"
	"github.com/productdesk/productdesk/internal/query"
	"github.com/productdesk/productdesk/internal/shared"
	"github.com/productdesk/productdesk/internal/view"
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
	queryMetrics, err := query.NewMetrics(metrics.Registerer())
	if err != nil {
		logger.Error("register query metrics", slog.Any("error", err))
		os.Exit(1)
	}

	productCache := query.NewCache[products.PagedResponse](query.Options{
		Name:      "products",
		StaleTime: cfg.QueryStaleTime,
		GCTime:    cfg.QueryGCTime,
		Metrics:   queryMetrics,
	})
	bus := query.NewBus(redisClient, cfg.InvalidationChannel, logger)
	if err := bus.Listen(ctx, productCache); err != nil {
		logger.Warn("subscribe invalidation channel", slog.Any("error", err))
	}

	client := productapi.NewClient(cfg.ProductsAPIURL, cfg.ProductsAPITimeout, logger).WithObserver(metrics)
	store := products.NewStore(client, productCache, bus, logger)

	sessionManager := shared.NewSessionManager(redisClient, "productdesk_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	locks := shared.NewLockManager(redisClient, 2*cfg.ProductsAPITimeout, logger)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		ProductsHandler: products.NewHandler(logger, store, templates, csrfManager).WithLocks(locks),
		Metrics:         metrics,
		ReadinessChecks: []app.ReadinessCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }},
			{Name: "products-api", Check: client.Ping},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("products_api", client.BaseURL()))
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
