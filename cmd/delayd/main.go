package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fanout-lab/fanout/internal/config"
	"github.com/fanout-lab/fanout/internal/health"
	"github.com/fanout-lab/fanout/internal/logging"
	"github.com/fanout-lab/fanout/internal/metrics"
	loggingMiddleware "github.com/fanout-lab/fanout/internal/middleware/logging"
	"github.com/fanout-lab/fanout/internal/middleware/request"
	"github.com/fanout-lab/fanout/internal/middleware/security"
	"github.com/fanout-lab/fanout/internal/telemetry"
	"github.com/fanout-lab/fanout/pkg/delay"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Parse command line flags
	configFile := flag.String("config", "", "Path to configuration file (JSON or YAML)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "json", "Log format (json, text, dev)")
	flag.Parse()

	// Initialize structured logger
	logger := logging.NewLogger(*logLevel, *logFormat)

	// Load configuration
	cfg, err := config.Load(*configFile, config.ServiceDelay)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Log the configuration (with sensitive values masked)
	logger.Info("Configuration loaded", "config", cfg.String())

	ctx := context.Background()

	// Initialize health checker
	healthCheck := health.NewCheck()

	// Add metrics initialization
	reg := prometheus.NewRegistry()
	if err := metrics.InitMetrics(reg); err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	// Optional tracing
	tracing := initTracing(ctx, cfg, logger)
	if tracing != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Error("Telemetry shutdown error", "error", err)
			}
		}()
	}

	// Create delay handler
	delayHandler := delay.NewHandler(delay.Config{
		MaxDelay: cfg.Server.MaxDelay,
	})

	// Create router
	mux := http.NewServeMux()

	// Add metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Add health check routes
	mux.HandleFunc("/health", healthCheck.HealthHandler)
	mux.HandleFunc("/ready", healthCheck.ReadyHandler)

	// Add the delay route with middleware
	mux.Handle("/", buildMiddleware(delayHandler, cfg, logger, tracing))

	// Configure server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", "service", config.ServiceDelay, "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Mark as ready to receive traffic
	healthCheck.SetReady(true)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down server", "signal", sig.String())

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthCheck.SetReady(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("Server shutdown complete")
}

// buildMiddleware assembles the route middleware chain.
// Note: The order of middleware is important!
func buildMiddleware(handler http.Handler, cfg *config.Config, logger *slog.Logger, tracing *telemetry.Provider) http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		request.WithRequestID, // Generate request ID first
		loggingMiddleware.WithStructuredLogging(logger), // Add structured logging early for all requests
		security.WithSecurityHeaders(security.SecurityConfig{
			AllowedOrigins: cfg.Security.AllowedOrigins,
			AllowedMethods: cfg.Security.AllowedMethods,
			AllowedHeaders: cfg.Security.AllowedHeaders,
			MaxAge:         3600,
		}),
	}

	if len(cfg.Security.AllowedIPs) > 0 {
		allowList := security.NewIPAllowList(cfg.Security.AllowedIPs)
		middlewares = append(middlewares, allowList.Middleware)
	}

	middlewares = append(middlewares,
		security.WithRateLimiter(security.NewGlobalRateLimiter(cfg.Security.RateLimit)), // Global rate limiting
		security.WithRateLimiter(security.NewIPRateLimiter(cfg.Security.IPRateLimit)),   // IP-based rate limiting
	)

	if tracing != nil {
		middlewares = append(middlewares, tracing.TracingMiddleware)
	}

	// Timeout last, so the handler sees the bounded context
	middlewares = append(middlewares, request.WithTimeout(cfg.Server.RequestTimeout))

	return chainMiddleware(handler, middlewares...)
}

// initTracing starts the OTLP trace provider when tracing is enabled
func initTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) *telemetry.Provider {
	if !cfg.Telemetry.Enabled {
		return nil
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = config.ServiceDelay
	tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tcfg.SamplingRatio = cfg.Telemetry.SamplingRatio

	provider, err := telemetry.NewProvider(tcfg)
	if err != nil {
		logger.Error("Failed to create telemetry provider", "error", err)
		return nil
	}
	if err := provider.Start(ctx); err != nil {
		logger.Error("Failed to start telemetry provider", "error", err)
		return nil
	}
	return provider
}

// Middleware chain helper - applies middleware in reverse order
// so they execute in the order they're passed
func chainMiddleware(handler http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
