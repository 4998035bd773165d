package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/syncai-intake/cmd/mainconfig"
	"github.com/wolfman30/syncai-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/syncai-intake/internal/config"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if err := validateWorkerConfig(cfg); err != nil {
		logger.Error("invalid worker configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	messagingMetrics := metrics.NewMessagingMetrics(registry)
	conversationMetrics := metrics.NewConversationMetrics(registry)

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

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, &awsConfig, logger)
	if err != nil {
		logger.Error("failed to build language model client", "error", err)
		os.Exit(1)
	}
	defer closeLLM()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Warn("redis unavailable; SQS redeliveries will not be deduplicated")
	} else {
		defer redisClient.Close()
	}

	messenger, _ := bootstrap.BuildOutboundMessenger(cfg, messagingMetrics, logger)
	pipeline, err := bootstrap.BuildPipeline(cfg, &awsConfig, bootstrap.PipelineDeps{
		Router:    bootstrap.BuildRouter(store, llm, products, conversationMetrics, logger),
		Jobs:      bootstrap.BuildJobStore(cfg, &awsConfig, logger),
		Messenger: messenger,
		Processed: bootstrap.BuildProcessedStore(redisClient, cfg),
		Metrics:   conversationMetrics,
	}, logger)
	if err != nil {
		logger.Error("failed to build conversation pipeline", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           opsHandler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	pipeline.Worker.Start(ctx)
	logger.Info("conversation worker started", "workers", cfg.WorkerCount, "queue", pipeline.Queue)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down conversation worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()
	_ = srv.Shutdown(doneCtx)

	waitCh := make(chan struct{})
	go func() {
		pipeline.Worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("conversation worker stopped")
	case <-doneCtx.Done():
		logger.Error("conversation worker shutdown timed out", "error", doneCtx.Err())
	}
}

// validateWorkerConfig rejects settings that would leave this process
// polling a queue nobody publishes to.
func validateWorkerConfig(cfg *appconfig.Config) error {
	if cfg.UseMemoryQueue {
		return errors.New("USE_MEMORY_QUEUE=true: the API server runs the worker inline")
	}
	if cfg.ConversationQueueURL == "" {
		return errors.New("CONVERSATION_QUEUE_URL is required")
	}
	return nil
}

func opsHandler(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}
