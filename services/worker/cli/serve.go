package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/passadis/azure-a2a-translation/internal/queue"
	redisstore "github.com/passadis/azure-a2a-translation/internal/redis"
	"github.com/passadis/azure-a2a-translation/internal/translator"
	"github.com/passadis/azure-a2a-translation/pkg/telemetry"
	"github.com/passadis/azure-a2a-translation/services/worker"
	"github.com/passadis/azure-a2a-translation/services/worker/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the worker",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address (host:port)")
	serveCmd.Flags().String("jobs-queue", "translation-jobs", "name of the jobs queue")
	serveCmd.Flags().String("results-queue", "translation-results", "name of the results queue")
	serveCmd.Flags().Duration("poll-interval", 5*time.Second, "delay between empty queue polls")
	serveCmd.Flags().Duration("visibility-timeout", 5*time.Minute, "how long a claimed job stays hidden from other workers")
	serveCmd.Flags().Int("batch-size", 1, "messages claimed per poll")
	serveCmd.Flags().Int("max-deliveries", 5, "deliveries before a job is reported failed")
	serveCmd.Flags().Duration("translate-timeout", 30*time.Second, "per-job provider call timeout")
	serveCmd.Flags().Int("rate-limit", 0, "provider calls allowed per rate window across all workers; 0 disables")
	serveCmd.Flags().Duration("rate-window", time.Minute, "sliding window for the provider rate limit")
	serveCmd.Flags().String("translator-endpoint", "https://api.cognitive.microsofttranslator.com", "translation provider endpoint")
	serveCmd.Flags().String("translator-region", "", "translation provider region")
	serveCmd.Flags().String("translator-key", "", "translation provider API key")
	serveCmd.Flags().String("metrics-addr", ":9091", "Prometheus metrics server address")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("redis_addr", serveCmd.Flags(), "redis-addr")
	bindFlag("jobs_queue", serveCmd.Flags(), "jobs-queue")
	bindFlag("results_queue", serveCmd.Flags(), "results-queue")
	bindFlag("poll_interval", serveCmd.Flags(), "poll-interval")
	bindFlag("visibility_timeout", serveCmd.Flags(), "visibility-timeout")
	bindFlag("batch_size", serveCmd.Flags(), "batch-size")
	bindFlag("max_deliveries", serveCmd.Flags(), "max-deliveries")
	bindFlag("translate_timeout", serveCmd.Flags(), "translate-timeout")
	bindFlag("rate_limit", serveCmd.Flags(), "rate-limit")
	bindFlag("rate_window", serveCmd.Flags(), "rate-window")
	bindFlag("translator_endpoint", serveCmd.Flags(), "translator-endpoint")
	bindFlag("translator_region", serveCmd.Flags(), "translator-region")
	bindFlag("translator_key", serveCmd.Flags(), "translator-key")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	_ = viper.BindEnv("translator_key", "AZURE_TRANSLATOR_KEY")
	_ = viper.BindEnv("translator_region", "AZURE_TRANSLATOR_REGION")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	workerID := "translator-" + uuid.New().String()[:8]

	logger := buildLogger(cfg.LogLevel, "worker").With(slog.String("worker_id", workerID))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), "translation-worker", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	redisClient := queue.NewClient(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	q := queue.NewRedisQueue(redisClient)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = q.Ping(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}

	azure := translator.NewAzureClient(
		cfg.TranslatorEndpoint, cfg.TranslatorKey, cfg.TranslatorRegion, cfg.TranslateTimeout,
	)

	opts := []worker.Option{
		worker.WithLogger(logger),
		worker.WithPollInterval(cfg.PollInterval),
		worker.WithVisibility(cfg.VisibilityTimeout),
		worker.WithBatchSize(cfg.BatchSize),
		worker.WithMaxDeliveries(cfg.MaxDeliveries),
		worker.WithTimeout(cfg.TranslateTimeout),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, worker.WithRateLimiter(
			redisstore.NewRateLimiter(redisClient, cfg.RateLimit, cfg.RateWindow),
		))
	}

	w := worker.New(workerID, q, azure, cfg.JobsQueue, cfg.ResultsQueue, opts...)

	runCtx, runCancel := context.WithCancel(context.Background())
	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down, draining in-flight jobs...")
		runCancel()
	}()

	logger.Info("worker starting",
		slog.String("jobs_queue", cfg.JobsQueue),
		slog.String("results_queue", cfg.ResultsQueue),
		slog.Duration("visibility_timeout", cfg.VisibilityTimeout),
		slog.Int("max_deliveries", cfg.MaxDeliveries),
	)

	if err := w.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker: %w", err)
	}

	w.Wait()
	logger.Info("stopped cleanly")
	return nil
}
