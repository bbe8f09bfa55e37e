package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bjhnbjh/vibecoding-camera/internal"
	"github.com/bjhnbjh/vibecoding-camera/internal/auth"
	"github.com/bjhnbjh/vibecoding-camera/internal/cache"
	"github.com/bjhnbjh/vibecoding-camera/internal/dispatch"
	"github.com/bjhnbjh/vibecoding-camera/internal/handler"
	"github.com/bjhnbjh/vibecoding-camera/internal/jobs"
	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/bjhnbjh/vibecoding-camera/internal/middleware"
	"github.com/bjhnbjh/vibecoding-camera/internal/repository"
	"github.com/bjhnbjh/vibecoding-camera/internal/service"
	"github.com/bjhnbjh/vibecoding-camera/internal/storage"
	"github.com/bjhnbjh/vibecoding-camera/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)

	// Image storage
	imageStorage, err := storage.New(storage.Config{
		Provider: cfg.StorageProvider,
		Local:    storage.LocalConfig{BasePath: cfg.LocalStoragePath},
		S3: storage.S3Config{
			AccountID:       cfg.R2AccountID,
			Endpoint:        cfg.R2Endpoint,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Result cache is optional; polling falls back to the database.
	var resultCache service.AnalysisCache
	if cfg.RedisURL != "" {
		rc, err := cache.Connect(ctx, cache.Config{
			URL:      cfg.RedisURL,
			Password: cfg.RedisPassword,
			TTL:      cfg.ResultCacheTTL,
		})
		if err != nil {
			return fmt.Errorf("cache initialization failed: %w", err)
		}
		defer rc.Close()
		resultCache = rc
		logger.Info("Result cache ready", "ttl", cfg.ResultCacheTTL)
	}

	// Identity and callback secrets
	tokenVerifier, err := auth.NewTokenVerifier([]byte(cfg.JWTSecret), cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("token verifier initialization failed: %w", err)
	}
	secretVerifier, err := service.NewSecretVerifier(cfg.CallbackSecret, cfg.CallbackSecretHash)
	if err != nil {
		return fmt.Errorf("callback secret initialization failed: %w", err)
	}

	// Initialize services
	quotaService := service.NewQuotaService(store, cfg.FreeTierLimit, logger)
	analysisService := service.NewAnalysisService(
		store,
		quotaService,
		imageStorage,
		service.NewImagingProcessor(),
		resultCache,
		service.AnalysisConfig{
			MaxUploadSize:       cfg.MaxUploadSize,
			MaxImageDimension:   cfg.ImageMaxDimension,
			DispatchMaxAttempts: int32(cfg.DispatchMaxAttempts),
		},
		logger,
	)
	callbackService := service.NewCallbackService(store, resultCache, logger)

	// ==========================================================================
	// Background dispatch worker
	// ==========================================================================

	var bgWorker *worker.Worker
	if cfg.WorkerEnabled {
		dispatcher, err := dispatch.New(dispatch.Config{
			WebhookURL:     cfg.AnalyzerWebhookURL,
			Timeout:        cfg.AnalyzerTimeout,
			MaxRetries:     cfg.DispatchMaxRetries,
			RetryBaseDelay: cfg.DispatchRetryBaseDelay,
		}, logger)
		if err != nil {
			return fmt.Errorf("dispatch client initialization failed: %w", err)
		}

		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout

		bgWorker, err = worker.New(store, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		bgWorker.Register(jobs.NewDispatchAnalysisHandler(
			store, imageStorage, dispatcher, analysisService, cfg.DispatchFailOnError, logger,
		))
		bgWorker.Start(ctx)
	} else {
		logger.Warn("Worker disabled; submitted analyses will not be dispatched")
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	authMw := middleware.NewAuthMiddleware(tokenVerifier, logger)
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)

	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRatePerMinute, logger)
	defer submitLimiter.Close()
	callbackLimiter := middleware.NewRateLimiter(cfg.CallbackRatePerMinute, logger)
	defer callbackLimiter.Close()

	submitLimit := middleware.NewRateLimitMiddleware(submitLimiter, logger).Limit
	callbackLimit := middleware.NewRateLimitMiddleware(callbackLimiter, logger).Limit

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			logger.Warn("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set; /metrics is unprotected")
		mux.Handle("GET /metrics", promhttp.Handler())
	} else {
		metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
		mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	}

	handler.NewAnalysisHandler(analysisService, quotaService, cfg.MaxUploadSize, logger).
		RegisterRoutes(mux, requireUser, submitLimit)
	handler.NewCallbackHandler(callbackService, secretVerifier, logger).
		RegisterRoutes(mux, callbackLimit)

	// Unmatched routes answer with the JSON error envelope
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	security := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())
	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	root := middleware.Stack(metrics.Middleware, requestLogger.Handler, security.Handler)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if bgWorker != nil {
		bgWorker.Stop()
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
