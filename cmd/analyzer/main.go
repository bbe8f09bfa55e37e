// Command analyzer is a stand-in for the external meal analyzer. It accepts
// dispatched images, runs them through an AI provider and posts the outcome
// back to the server's callback endpoint.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal"
	"github.com/bjhnbjh/vibecoding-camera/internal/ai"
	"github.com/bjhnbjh/vibecoding-camera/internal/ai/anthropic"
	"github.com/bjhnbjh/vibecoding-camera/internal/ai/mock"
	"github.com/bjhnbjh/vibecoding-camera/internal/ai/vertex"
	"github.com/bjhnbjh/vibecoding-camera/internal/analyzer"
	"github.com/bjhnbjh/vibecoding-camera/internal/middleware"
)

func newProvider(ctx context.Context, cfg *internal.AnalyzerConfig, logger *slog.Logger) (ai.Analyzer, func() error, error) {
	providerCfg := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
	}
	noop := func() error { return nil }

	switch cfg.AIProvider {
	case "anthropic":
		p, err := anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: providerCfg,
		}, logger)
		return p, noop, err
	case "vertex":
		p, err := vertex.New(ctx, vertex.Config{
			ProjectID:       cfg.VertexProjectID,
			Location:        cfg.VertexLocation,
			Model:           cfg.VertexModel,
			CredentialsFile: cfg.GoogleCredsFile,
			ProviderConfig:  providerCfg,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return mock.New(cfg.MockDelay, logger), noop, nil
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewAnalyzerConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	provider, closeProvider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}
	defer closeProvider()
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	reporter, err := analyzer.NewReporter(analyzer.ReporterConfig{
		CallbackURL: cfg.CallbackURL,
		Secret:      cfg.CallbackSecret,
	}, logger)
	if err != nil {
		return fmt.Errorf("reporter initialization failed: %w", err)
	}

	srv := analyzer.NewServer(provider, reporter, analyzer.Config{
		MaxImageSize:    cfg.MaxImageSize,
		Concurrency:     cfg.Concurrency,
		AnalysisTimeout: cfg.AnalysisTimeout,
	}, logger)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           requestLogger.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Analyzer started", "address", server.Addr, "callback_url", cfg.CallbackURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		return fmt.Errorf("analyzer failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	// Let in-flight analyses post their callbacks
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Analyses still running at shutdown", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
