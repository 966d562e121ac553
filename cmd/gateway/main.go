package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/api"
	"github.com/heraldapp/herald/internal/config"
	"github.com/heraldapp/herald/internal/db"
	"github.com/heraldapp/herald/internal/dispatch"
	"github.com/heraldapp/herald/internal/metrics"
	"github.com/heraldapp/herald/internal/observ"
	"github.com/heraldapp/herald/internal/preference"
	"github.com/heraldapp/herald/internal/provider"
	"github.com/heraldapp/herald/internal/queue"
	"github.com/heraldapp/herald/internal/realtime"
	"github.com/heraldapp/herald/internal/redis"
	"github.com/heraldapp/herald/internal/template"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting herald gateway",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("email_provider", cfg.EmailProvider),
		zap.String("sms_provider", cfg.SmsProvider),
	)

	// Initialize database connection
	ctx := context.Background()
	database, err := db.New(ctx, db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName),
	)

	repo := db.NewRepository(database, logger)

	// Redis backs the durable queues, template cache and rate limiter
	redisClient, err := redis.New(ctx, redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	primaryQueue := redis.NewQueue(redisClient, redis.PrimaryQueueKey, logger)
	retryQueue := redis.NewQueue(redisClient, redis.RetryQueueKey, logger)
	templateCache := redis.NewTemplateCache(redisClient,
		time.Duration(cfg.TemplateCacheTTL)*time.Minute, logger)
	rateLimiter := redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
		Limit:  cfg.RateLimitPerMin,
		Window: 1 * time.Minute,
	})

	// Providers
	providers, err := provider.NewRegistry(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	// Template resolution, preference gate and realtime registry
	resolver := template.NewResolver(repo, templateCache, providers.Templates, logger)
	prefs := preference.NewService(repo, logger)
	rtRegistry := realtime.NewRegistry(logger)
	defer rtRegistry.Close()

	// Dispatch engine
	engine := dispatch.New(providers, resolver, prefs, repo, primaryQueue, rtRegistry, dispatch.Config{
		MaxRetries:      cfg.MaxRetries,
		DefaultLanguage: cfg.DefaultLanguage,
	}, logger)

	// Queue worker
	w := queue.New(primaryQueue, retryQueue, repo, engine, queue.Config{
		MaxRetries: cfg.MaxRetries,
	}, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go w.Start(workerCtx)

	logger.Info("queue worker started")

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	handler := api.NewHandler(logger, engine, rtRegistry, prefs, repo)
	wsHandler := realtime.NewHandler(rtRegistry, logger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.IPKeyFunc))

		r.Post("/notifications/email", handler.SendEmail)
		r.Post("/notifications/sms", handler.SendSms)
		r.Post("/notifications/email/templated", handler.SendTemplatedEmail)
		r.Post("/notifications/sms/templated", handler.SendTemplatedSms)
		r.Post("/notifications/bulk", handler.SendBulk)
		r.Post("/notifications/realtime", handler.SendRealtime)
		r.Post("/notifications/realtime/broadcast", handler.Broadcast)
		r.Get("/notifications", handler.ListNotifications)

		r.Get("/preferences/{userID}", handler.GetPreferences)
		r.Put("/preferences/{userID}", handler.UpdatePreference)

		r.Get("/stats", handler.GetStats)
	})

	// Websocket endpoint stays outside the rate limiter: one upgrade per
	// session, not one per request
	r.Get("/v1/ws", wsHandler.ServeHTTP)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
