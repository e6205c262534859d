// Package worker consumes translation jobs, calls the provider and publishes
// the terminal outcome to the results queue. The worker never touches the
// task store; result hand-off is its only write path, which keeps it safe to
// scale horizontally.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/passadis/azure-a2a-translation/internal/domain"
	"github.com/passadis/azure-a2a-translation/internal/queue"
	redisstore "github.com/passadis/azure-a2a-translation/internal/redis"
	"github.com/passadis/azure-a2a-translation/internal/translator"
	"github.com/passadis/azure-a2a-translation/pkg/retry"
	"github.com/passadis/azure-a2a-translation/pkg/telemetry"
)

// Worker polls the jobs queue and settles each delivery one of three ways:
// ack after publishing a result, ack without a result (malformed), or leave
// in flight so the visibility timeout redelivers it.
// translateBudgetKey is the shared rate-limit key: every worker replica draws
// on the same provider quota, so the window is global, not per worker.
const translateBudgetKey = "translate"

type Worker struct {
	queue         queue.Queue
	translator    translator.Translator
	limiter       redisstore.RateLimiter
	workerID      string
	jobsQueue     string
	resultsQueue  string
	pollInterval  time.Duration
	visibility    time.Duration
	batchSize     int
	maxDeliveries int
	timeout       time.Duration
	publishBase   time.Duration
	logger        *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

func WithPollInterval(d time.Duration) Option { return func(w *Worker) { w.pollInterval = d } }
func WithVisibility(d time.Duration) Option   { return func(w *Worker) { w.visibility = d } }
func WithBatchSize(n int) Option              { return func(w *Worker) { w.batchSize = n } }
func WithMaxDeliveries(n int) Option          { return func(w *Worker) { w.maxDeliveries = n } }
func WithTimeout(d time.Duration) Option      { return func(w *Worker) { w.timeout = d } }
func WithPublishDelay(d time.Duration) Option { return func(w *Worker) { w.publishBase = d } }
func WithLogger(l *slog.Logger) Option        { return func(w *Worker) { w.logger = l } }

// WithRateLimiter caps provider calls across all worker replicas. Jobs over
// the budget are deferred to queue redelivery, not failed.
func WithRateLimiter(l redisstore.RateLimiter) Option {
	return func(w *Worker) { w.limiter = l }
}

// New constructs a Worker with the given dependencies and options.
func New(
	workerID string,
	q queue.Queue,
	tr translator.Translator,
	jobsQueue, resultsQueue string,
	opts ...Option,
) *Worker {
	w := &Worker{
		workerID:      workerID,
		queue:         q,
		translator:    tr,
		jobsQueue:     jobsQueue,
		resultsQueue:  resultsQueue,
		pollInterval:  5 * time.Second,
		visibility:    5 * time.Minute,
		batchSize:     1,
		maxDeliveries: 5,
		timeout:       30 * time.Second,
		publishBase:   time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. The poll interval only paces empty
// queues; a backlog is drained batch after batch without sleeping.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := w.drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("jobs poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until all in-flight jobs finish. Call after Run returns.
func (w *Worker) Wait() { w.wg.Wait() }

// drain keeps dequeuing until the jobs queue yields an empty batch.
func (w *Worker) drain(ctx context.Context) error {
	for {
		msgs, err := w.queue.Dequeue(ctx, w.jobsQueue, w.batchSize, w.visibility)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for _, msg := range msgs {
			w.processJob(ctx, msg)
		}
	}
}

// processJob handles one delivery end to end. The settle decision tree:
// malformed or over the delivery bound settles immediately; a permanent
// provider error publishes failed and acks; a transient error leaves the
// message in flight for redelivery.
func (w *Worker) processJob(ctx context.Context, msg queue.Message) {
	w.wg.Add(1)
	telemetry.WorkerJobsInFlight.Inc()
	defer func() {
		telemetry.WorkerJobsInFlight.Dec()
		w.wg.Done()
	}()

	var job domain.JobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.logger.Error("malformed job message, discarding",
			slog.String("error", err.Error()),
			slog.String("raw", string(msg.Body)),
		)
		telemetry.WorkerJobsProcessed.WithLabelValues("malformed").Inc()
		w.ack(ctx, msg, w.logger)
		return
	}

	// Continue the trace the gateway propagated through the message envelope.
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(job.Trace))
	spanCtx, span := otel.Tracer("worker").Start(parent, "worker.process_job")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", job.TaskID),
		attribute.String("task.target_language", job.TargetLanguage),
		attribute.String("worker.id", w.workerID),
		attribute.Int("delivery.count", msg.DeliveryCount),
	)
	ctx = spanCtx

	log := w.logger.With(
		slog.String("task_id", job.TaskID),
		slog.String("target_language", job.TargetLanguage),
		slog.String("worker_id", w.workerID),
		slog.Int("delivery_count", msg.DeliveryCount),
	)

	if msg.DeliveryCount > w.maxDeliveries {
		log.Error("job exhausted its deliveries, reporting failed")
		span.SetStatus(codes.Error, "delivery bound exceeded")
		telemetry.WorkerJobsProcessed.WithLabelValues("poison").Inc()
		w.settle(ctx, msg, &domain.ResultMessage{
			TaskID:      job.TaskID,
			Status:      domain.StatusFailed,
			ErrorDetail: "retry limit exceeded",
			Attempts:    msg.DeliveryCount,
			ProcessedAt: time.Now().UTC(),
		}, log)
		return
	}

	if w.limiter != nil {
		allowed, limErr := w.limiter.Allow(ctx, translateBudgetKey)
		if limErr != nil {
			// Fail open: a limiter outage should not stall translation.
			log.Warn("rate limiter check failed, proceeding", slog.String("error", limErr.Error()))
		} else if !allowed {
			log.Info("provider budget exhausted, deferring job to redelivery",
				slog.Int("limit", w.limiter.Limit()),
			)
			telemetry.WorkerJobsThrottled.Inc()
			return
		}
	}

	// Keep the claim alive while the provider call runs, so a slow translate
	// does not race the visibility timeout into a duplicate delivery.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go w.heartbeat(hbCtx, msg, log)

	start := time.Now()
	translateCtx, cancel := context.WithTimeout(ctx, w.timeout)
	translated, err := w.translator.Translate(translateCtx, job.DocumentContent, job.TargetLanguage)
	cancel()
	stopHeartbeat()
	telemetry.WorkerTranslateDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		log.Info("job translated", slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		telemetry.WorkerJobsProcessed.WithLabelValues("completed").Inc()
		w.settle(ctx, msg, &domain.ResultMessage{
			TaskID:          job.TaskID,
			Status:          domain.StatusCompleted,
			ArtifactContent: translated,
			Attempts:        msg.DeliveryCount,
			ProcessedAt:     time.Now().UTC(),
			Trace:           job.Trace,
		}, log)

	case translator.IsPermanent(err):
		log.Error("job failed permanently", slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "permanent provider failure")
		telemetry.WorkerJobsProcessed.WithLabelValues("failed").Inc()
		w.settle(ctx, msg, &domain.ResultMessage{
			TaskID:      job.TaskID,
			Status:      domain.StatusFailed,
			ErrorDetail: err.Error(),
			Attempts:    msg.DeliveryCount,
			ProcessedAt: time.Now().UTC(),
			Trace:       job.Trace,
		}, log)

	default:
		// Transient (or classified as such): no ack, no result. The message
		// reappears after the visibility timeout with a higher delivery count.
		log.Warn("transient failure, leaving job for redelivery", slog.String("error", err.Error()))
		span.RecordError(err)
		telemetry.WorkerTransientFailures.Inc()
	}
}

// settle publishes the result and then deletes the job message. Publish comes
// first: if the ack were first and the process died before publishing, the
// outcome would be lost with no redelivery to recover it.
func (w *Worker) settle(ctx context.Context, msg queue.Message, res *domain.ResultMessage, log *slog.Logger) {
	raw, err := json.Marshal(res)
	if err != nil {
		log.Error("failed to marshal result", slog.String("error", err.Error()))
		return
	}

	err = retry.Do(ctx, retry.Config{
		MaxAttempts: 3,
		BaseDelay:   w.publishBase,
		OnRetry: func(attempt int, retryErr error) {
			log.Warn("result publish failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", retryErr.Error()),
			)
		},
	}, func() error {
		_, pubErr := w.queue.Enqueue(ctx, w.resultsQueue, raw)
		return pubErr
	})
	if err != nil {
		// Leave the job in flight; the redelivered job produces the same
		// result and the reconciler's terminal-wins store absorbs the repeat.
		log.Error("failed to publish result, leaving job for redelivery", slog.String("error", err.Error()))
		return
	}

	w.ack(ctx, msg, log)
}

// heartbeat extends the message claim at half the visibility interval until
// cancelled.
func (w *Worker) heartbeat(ctx context.Context, msg queue.Message, log *slog.Logger) {
	ticker := time.NewTicker(w.visibility / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.queue.ExtendVisibility(ctx, w.jobsQueue, msg.Receipt, w.visibility); err != nil {
				log.Warn("failed to extend visibility", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (w *Worker) ack(ctx context.Context, msg queue.Message, log *slog.Logger) {
	if err := w.queue.Ack(ctx, w.jobsQueue, msg.Receipt); err != nil {
		if errors.Is(err, queue.ErrUnknownReceipt) {
			log.Warn("receipt expired before ack, job will be redelivered")
			return
		}
		log.Error("ack failed", slog.String("error", fmt.Sprintf("%v", err)))
	}
}
