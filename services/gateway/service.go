// Package gateway implements the submission and protocol gateway: it
// validates input, creates the task record, enqueues the job message and
// answers status queries. It never blocks on translation; the worker and
// reconciler carry the task the rest of the way.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/passadis/azure-a2a-translation/internal/domain"
	"github.com/passadis/azure-a2a-translation/internal/postgres"
	"github.com/passadis/azure-a2a-translation/internal/queue"
	redisstore "github.com/passadis/azure-a2a-translation/internal/redis"
	"github.com/passadis/azure-a2a-translation/internal/translator"
	"github.com/passadis/azure-a2a-translation/pkg/telemetry"
)

// Service holds the gateway's collaborators and implements the
// protocol-neutral operations that REST and JSON-RPC both bind to.
type Service struct {
	store           redisstore.TaskStore
	repo            postgres.TaskRepository
	queue           queue.Queue
	languages       *translator.LanguageSet
	jobsQueue       string
	defaultLanguage string
	logger          *slog.Logger
}

// NewService wires a gateway Service. defaultLanguage is used when a
// submission carries no target language.
func NewService(
	store redisstore.TaskStore,
	repo postgres.TaskRepository,
	q queue.Queue,
	languages *translator.LanguageSet,
	jobsQueue, defaultLanguage string,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:           store,
		repo:            repo,
		queue:           q,
		languages:       languages,
		jobsQueue:       jobsQueue,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// Submit validates the submission, creates the task record and enqueues the
// job message. It returns as soon as the message is durably queued. If the
// enqueue fails after the record exists, the task is forced to failed so the
// store never diverges silently from the queue.
func (s *Service) Submit(ctx context.Context, clientTaskID, targetLanguage, documentContent string) (*domain.Task, error) {
	ctx, span := otel.Tracer("gateway").Start(ctx, "gateway.submit")
	defer span.End()

	if targetLanguage == "" {
		targetLanguage = s.defaultLanguage
	}

	var supported func(string) bool
	if s.languages != nil && s.languages.Len() > 0 {
		supported = s.languages.Supported
	}
	if err := domain.ValidateSubmission(documentContent, targetLanguage, supported); err != nil {
		telemetry.GatewayValidationRejected.Inc()
		span.SetStatus(codes.Error, "validation rejected")
		return nil, err
	}

	taskID := clientTaskID
	if taskID == "" {
		taskID = uuid.New().String()
	}
	span.SetAttributes(
		attribute.String("task.id", taskID),
		attribute.String("task.target_language", targetLanguage),
	)

	now := time.Now().UTC()
	task := &domain.Task{
		ID:             taskID,
		TargetLanguage: targetLanguage,
		SourceText:     documentContent,
		Status:         domain.StatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.Create(ctx, task); err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Audit row is best-effort: the Redis store and the queue are the
	// primary flow.
	if err := s.repo.Create(ctx, task); err != nil {
		s.logger.Error("failed to persist task audit row",
			slog.String("task_id", taskID), slog.String("error", err.Error()))
	}

	job := &domain.JobMessage{
		TaskID:          taskID,
		TargetLanguage:  targetLanguage,
		DocumentContent: documentContent,
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		job.Trace = carrier
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job for task %s: %w", taskID, err)
	}

	if _, err := s.queue.Enqueue(ctx, s.jobsQueue, body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		telemetry.GatewayEnqueueFailures.Inc()
		// The record exists but no job message does; force the task to
		// failed rather than leave it stuck in submitted.
		reason := "job could not be enqueued to the translation queue"
		if failErr := s.store.Fail(ctx, taskID, reason); failErr != nil {
			s.logger.Error("failed to mark task failed after enqueue error",
				slog.String("task_id", taskID), slog.String("error", failErr.Error()))
		}
		if repoErr := s.repo.UpdateStatus(ctx, taskID, domain.StatusFailed); repoErr != nil {
			s.logger.Error("failed to update audit status after enqueue error",
				slog.String("task_id", taskID), slog.String("error", repoErr.Error()))
		}
		return nil, fmt.Errorf("enqueue job for task %s: %w", taskID, err)
	}

	if err := s.store.MarkQueued(ctx, taskID); err != nil {
		// The job message is durably queued; the status will still converge
		// when the result arrives, so log rather than fail the submission.
		// The response keeps the submitted status the store actually holds.
		s.logger.Error("failed to mark task queued",
			slog.String("task_id", taskID), slog.String("error", err.Error()))
	} else {
		task.Status = domain.StatusQueued
	}

	telemetry.GatewayTasksSubmitted.WithLabelValues(targetLanguage).Inc()
	s.logger.Info("task submitted",
		slog.String("task_id", taskID),
		slog.String("target_language", targetLanguage),
	)
	return task, nil
}

// Status is a pure read: the shared store first, the audit trail as a
// fallback for tasks evicted by the retention policy.
func (s *Service) Status(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := s.store.Get(ctx, taskID)
	if err == nil {
		return task, nil
	}

	var notFound *domain.TaskNotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	task, repoErr := s.repo.GetByID(ctx, taskID)
	if repoErr != nil {
		if errors.As(repoErr, &notFound) {
			return nil, &domain.TaskNotFoundError{TaskID: taskID}
		}
		return nil, repoErr
	}
	return task, nil
}

// Cancel marks a non-terminal task canceled. Best-effort: a job message
// already claimed by a worker is not retracted; a result arriving later is
// recorded for audit but does not revert the canceled status.
func (s *Service) Cancel(ctx context.Context, taskID string) (*domain.Task, error) {
	_, err := s.store.Cancel(ctx, taskID)
	if err != nil {
		var terminal *domain.AlreadyTerminalError
		var notFound *domain.TaskNotFoundError
		switch {
		case errors.As(err, &terminal):
			telemetry.GatewayCancelRequests.WithLabelValues("already_terminal").Inc()
		case errors.As(err, &notFound):
			telemetry.GatewayCancelRequests.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	telemetry.GatewayCancelRequests.WithLabelValues("canceled").Inc()
	if repoErr := s.repo.UpdateStatus(ctx, taskID, domain.StatusCanceled); repoErr != nil {
		s.logger.Error("failed to update audit status after cancel",
			slog.String("task_id", taskID), slog.String("error", repoErr.Error()))
	}
	s.logger.Info("task canceled", slog.String("task_id", taskID))

	return s.Status(ctx, taskID)
}

// History lists recent tasks from the audit trail, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*domain.Task, error) {
	return s.repo.ListRecent(ctx, limit)
}

// Healthy reports whether the shared store is reachable. A probe read for a
// key that cannot exist distinguishes "store up" from "store down".
func (s *Service) Healthy(ctx context.Context) bool {
	_, err := s.store.Get(ctx, "__health__")
	if err == nil {
		return true
	}
	var notFound *domain.TaskNotFoundError
	return errors.As(err, &notFound)
}
