// Package reconciler drains the results queue and folds worker outcomes into
// the task store. It is the only component that moves tasks into completed or
// failed, so the gateway's status reads stay a pure lookup.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/passadis/azure-a2a-translation/internal/domain"
	"github.com/passadis/azure-a2a-translation/internal/postgres"
	"github.com/passadis/azure-a2a-translation/internal/queue"
	redisstore "github.com/passadis/azure-a2a-translation/internal/redis"
	"github.com/passadis/azure-a2a-translation/pkg/telemetry"
)

// Reconciler polls the results queue and applies each ResultMessage to the
// task store exactly once per task, terminal-wins.
type Reconciler struct {
	queue           queue.Queue
	store           redisstore.TaskStore
	repo            postgres.TaskRepository
	resultsQueue    string
	deadLetterQueue string
	pollInterval    time.Duration
	visibility      time.Duration
	batchSize       int
	maxDeliveries   int
	logger          *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithPollInterval(d time.Duration) Option { return func(r *Reconciler) { r.pollInterval = d } }
func WithVisibility(d time.Duration) Option   { return func(r *Reconciler) { r.visibility = d } }
func WithBatchSize(n int) Option              { return func(r *Reconciler) { r.batchSize = n } }
func WithMaxDeliveries(n int) Option          { return func(r *Reconciler) { r.maxDeliveries = n } }
func WithLogger(l *slog.Logger) Option        { return func(r *Reconciler) { r.logger = l } }

// New constructs a Reconciler with the given dependencies and options.
func New(
	q queue.Queue,
	store redisstore.TaskStore,
	repo postgres.TaskRepository,
	resultsQueue, deadLetterQueue string,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		queue:           q,
		store:           store,
		repo:            repo,
		resultsQueue:    resultsQueue,
		deadLetterQueue: deadLetterQueue,
		pollInterval:    5 * time.Second,
		visibility:      time.Minute,
		batchSize:       10,
		maxDeliveries:   5,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Poll errors are logged and retried on the
// next tick; a broken queue connection must not kill the gateway process.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if err := r.drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("results poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain keeps dequeuing until the results queue yields an empty batch, so a
// burst of outcomes is absorbed in one tick instead of one message per poll.
func (r *Reconciler) drain(ctx context.Context) error {
	for {
		msgs, err := r.queue.Dequeue(ctx, r.resultsQueue, r.batchSize, r.visibility)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for _, msg := range msgs {
			r.processResult(ctx, msg)
		}
	}
}

func (r *Reconciler) processResult(ctx context.Context, msg queue.Message) {
	var res domain.ResultMessage
	if err := json.Unmarshal(msg.Body, &res); err != nil {
		r.logger.Error("malformed result message, dead-lettering",
			slog.String("error", err.Error()),
			slog.String("raw", string(msg.Body)),
		)
		r.deadLetter(ctx, msg)
		return
	}

	// Continue the trace the worker propagated through the message envelope.
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(res.Trace))
	spanCtx, span := otel.Tracer("reconciler").Start(parent, "reconciler.apply_result")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", res.TaskID),
		attribute.String("result.status", string(res.Status)),
	)
	ctx = spanCtx

	log := r.logger.With(
		slog.String("task_id", res.TaskID),
		slog.String("status", string(res.Status)),
		slog.Int("delivery_count", msg.DeliveryCount),
	)

	applied, err := r.store.ApplyResult(ctx, &res)

	var notFound *domain.TaskNotFoundError
	switch {
	case errors.As(err, &notFound):
		// Orphan: the task record expired or never existed. Retry a few times
		// in case the store is lagging the queue, then dead-letter so the
		// result is not lost silently.
		if msg.DeliveryCount >= r.maxDeliveries {
			log.Warn("result for unknown task, dead-lettering")
			telemetry.ReconcilerOrphans.Inc()
			r.deadLetter(ctx, msg)
			return
		}
		log.Warn("result for unknown task, leaving for redelivery")
		return

	case err != nil:
		// Store unavailable. Leave unacked; the visibility timeout returns
		// the message for a later attempt.
		log.Error("failed to apply result", slog.String("error", err.Error()))
		span.RecordError(err)
		return
	}

	// Audit every delivery, including duplicates, so redelivery behaviour is
	// visible in the trail.
	if err := r.repo.RecordResult(ctx, &res); err != nil {
		log.Error("failed to record result audit row", slog.String("error", err.Error()))
	}

	if !applied {
		log.Info("duplicate result, task already terminal")
		telemetry.ReconcilerDuplicates.Inc()
		r.ack(ctx, msg, log)
		return
	}

	if err := r.repo.SetOutcome(ctx, &res); err != nil {
		log.Error("failed to update audit status", slog.String("error", err.Error()))
	}

	log.Info("result applied", slog.Int("attempts", res.Attempts))
	telemetry.ReconcilerResultsApplied.WithLabelValues(string(res.Status)).Inc()
	r.ack(ctx, msg, log)
}

// deadLetter copies the raw payload onto the dead-letter queue and deletes the
// original. If the copy fails the original stays in flight and is retried
// after the visibility timeout.
func (r *Reconciler) deadLetter(ctx context.Context, msg queue.Message) {
	if _, err := r.queue.Enqueue(ctx, r.deadLetterQueue, msg.Body); err != nil {
		r.logger.Error("failed to dead-letter result",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.ack(ctx, msg, r.logger)
}

func (r *Reconciler) ack(ctx context.Context, msg queue.Message, log *slog.Logger) {
	if err := r.queue.Ack(ctx, r.resultsQueue, msg.Receipt); err != nil {
		// An expired receipt means the message was already redelivered; the
		// terminal-wins store makes the replay harmless.
		log.Warn("ack failed", slog.String("error", err.Error()))
	}
}
