package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/syncai-intake/cmd/mainconfig"
	"github.com/wolfman30/syncai-intake/internal/api/router"
	"github.com/wolfman30/syncai-intake/internal/app/bootstrap"
	"github.com/wolfman30/syncai-intake/internal/booking"
	appconfig "github.com/wolfman30/syncai-intake/internal/config"
	"github.com/wolfman30/syncai-intake/internal/conversation"
	httpmiddleware "github.com/wolfman30/syncai-intake/internal/http/middleware"
	"github.com/wolfman30/syncai-intake/internal/messaging"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting syncai-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, metricsHandler := setupMetrics()
	messagingMetrics := metrics.NewMessagingMetrics(registry)
	conversationMetrics := metrics.NewConversationMetrics(registry)

	awsCfg, err := loadAWSConfig(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := bootstrap.BuildBookingStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build booking store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	products, err := bootstrap.BuildCatalog(cfg, logger)
	if err != nil {
		logger.Error("failed to load product catalog", "error", err)
		os.Exit(1)
	}

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build language model client", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	convRouter := bootstrap.BuildRouter(store, llm, products, conversationMetrics, logger)
	jobs := bootstrap.BuildJobStore(cfg, awsCfg, logger)
	messenger, _ := bootstrap.BuildOutboundMessenger(cfg, messagingMetrics, logger)

	pipeline, err := bootstrap.BuildPipeline(cfg, awsCfg, bootstrap.PipelineDeps{
		Router:    convRouter,
		Jobs:      jobs,
		Messenger: messenger,
		Processed: bootstrap.BuildProcessedStore(redisClient, cfg),
		Metrics:   conversationMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to build conversation pipeline", "error", err)
		os.Exit(1)
	}

	// The in-memory queue is only visible to this process, so it drains here.
	if pipeline.Queue == "memory" {
		pipeline.Worker.Start(ctx)
		logger.Info("inline conversation worker started", "workers", cfg.WorkerCount)
	}

	limiter := setupRateLimiter(ctx, cfg)

	// Initialize handlers
	messagingHandler := messaging.NewHandler(cfg.TwilioWebhookSecret, pipeline.Publisher, logger,
		messaging.WithPublicBaseURL(cfg.PublicBaseURL),
		messaging.WithHandlerMetrics(messagingMetrics),
	)
	conversationHandler := conversation.NewHandler(convRouter, pipeline.Publisher, jobs, logger)
	bookingHandler := booking.NewHandler(store, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:              logger,
		MessagingHandler:    messagingHandler,
		ConversationHandler: conversationHandler,
		BookingHandler:      bookingHandler,
		MetricsHandler:      metricsHandler,
		AdminAuthSecret:     cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         limiter,
		ReadinessChecks:     readinessChecks(redisClient),
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancel()
	if pipeline.Queue == "memory" {
		waitForWorker(shutdownCtx, pipeline.Worker, logger)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics returns a private registry with runtime collectors and the
// handler that exposes it.
func setupMetrics() (*prometheus.Registry, http.Handler) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// loadAWSConfig only touches the AWS SDK when a component needs it.
func loadAWSConfig(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*aws.Config, error) {
	if !cfg.UsesAWS() {
		logger.Info("no AWS-backed components configured")
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}

func setupRateLimiter(ctx context.Context, cfg *appconfig.Config) *httpmiddleware.RateLimiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.RunSweeper(ctx)
	return limiter
}

func readinessChecks(redisClient *redis.Client) map[string]router.ReadinessCheck {
	checks := map[string]router.ReadinessCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

func waitForWorker(ctx context.Context, worker *conversation.Worker, logger *logging.Logger) {
	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("inline conversation worker stopped")
	case <-ctx.Done():
		logger.Error("inline worker shutdown timed out", "error", ctx.Err())
	}
}
