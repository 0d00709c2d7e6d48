package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giftry/shophook/internal/audit"
	"github.com/giftry/shophook/internal/client/shopify"
	"github.com/giftry/shophook/internal/config"
	"github.com/giftry/shophook/internal/metrics"
	xredis "github.com/giftry/shophook/internal/redis"
	"github.com/giftry/shophook/internal/registrar"
	"github.com/giftry/shophook/internal/server/handler"
	"github.com/giftry/shophook/internal/service/webhook"
	"github.com/giftry/shophook/internal/storage"
	"github.com/giftry/shophook/internal/xhttp/middleware"
	"github.com/giftry/shophook/internal/xslog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

const keyPort = "port"

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Read()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	backend, err := initBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close backend", xslog.Error(err))
		}
	}()

	store, err := initAuditStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize audit store: %w", err)
	}
	recorder := audit.NewAsyncRecorder(store, logger)
	recorder.Start()
	defer recorder.Stop()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	handlers := webhook.NewRegistry()
	registerDefaultHandlers(handlers, cfg.Shopify.Topics)

	processor := webhook.NewProcessor(
		webhook.StaticSecret(cfg.Shopify.APISecret),
		handlers,
		backend,
		recorder,
		webhook.WithHandlerTimeout(cfg.HandlerTimeout),
		webhook.WithMetrics(m),
	)

	webhookHandler := handler.NewWebhook(processor)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/shopify", webhookHandler.HandleWebhook)
	mux.HandleFunc("GET /health", handler.NewHealth(backend))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	wrapped := middleware.Chain(mux,
		middleware.Recovery,
		middleware.Logging,
		middleware.Logger(logger),
		middleware.RequestID,
		middleware.SecurityHeaders,
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           wrapped,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.Shopify.AccessToken != "" && cfg.Shopify.ShopDomain != "" {
		go registerSubscriptions(ctx, cfg, m, logger)
	} else {
		logger.InfoContext(ctx, "skipping subscription registration: no access token or shop domain configured")
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.InfoContext(ctx, "starting server",
			xslog.Version(),
			slog.String(keyPort, cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "server error", xslog.Error(err))
		}
	}()

	<-done
	logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.InfoContext(ctx, "server stopped")
	return nil
}

func initBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Backend, error) {
	if cfg.Redis.URL == "" {
		logger.InfoContext(ctx, "initializing in-memory backend")
		return storage.NewMemoryBackend(storage.MemoryConfig{
			RateLimit:  cfg.RateLimit.Limit,
			RateWindow: cfg.RateLimit.Window,
		}), nil
	}

	logger.InfoContext(ctx, "initializing redis backend")
	client, err := xredis.New(ctx, xredis.Config{URL: cfg.Redis.URL})
	if err != nil {
		return nil, err
	}
	return storage.NewRedisBackend(storage.RedisConfig{
		Client:     client,
		RateLimit:  cfg.RateLimit.Limit,
		RateWindow: cfg.RateLimit.Window,
	}), nil
}

func initAuditStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (audit.Store, error) {
	switch {
	case cfg.Audit.DatabaseURL != "":
		logger.InfoContext(ctx, "initializing postgres audit store")
		pool, err := pgxpool.New(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		store, err := audit.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case cfg.Audit.SQLitePath != "":
		logger.InfoContext(ctx, "initializing sqlite audit store")
		return audit.NewSQLiteStore(ctx, cfg.Audit.SQLitePath)
	default:
		logger.InfoContext(ctx, "initializing log audit store")
		return audit.NewLogStore(logger), nil
	}
}

// registerDefaultHandlers wires every configured topic to a handler that
// acknowledges the delivery. Real deployments swap these for handlers that
// do the actual work; until then, processed deliveries are observable in
// logs and the audit trail.
func registerDefaultHandlers(registry *webhook.Registry, topicList []string) {
	for _, topic := range topicList {
		registry.Register(topic, func(ctx context.Context, env *webhook.Envelope) error {
			xslog.FromContext(ctx).InfoContext(ctx, "webhook processed",
				xslog.Topic(env.Topic),
				xslog.Shop(env.Shop),
				xslog.DeliveryID(env.DeliveryID),
			)
			return nil
		})
	}
}

func registerSubscriptions(ctx context.Context, cfg config.Config, m *metrics.Metrics, logger *slog.Logger) {
	client := shopify.New(
		cfg.Shopify.ShopDomain,
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Shopify.AccessToken}),
		shopify.WithLogger(logger),
	)

	reg := registrar.New(client, registrar.WithMetrics(m))
	report := reg.Register(ctx, cfg.Shopify.Topics, cfg.CallbackURL())

	if report.HasFailures() {
		logger.WarnContext(ctx, "subscription registration completed with failures",
			xslog.Count(len(report.Failed)))
		return
	}
	logger.InfoContext(ctx, "subscription registration complete",
		xslog.Count(len(report.Succeeded)))
}
