package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passadis/azure-a2a-translation/internal/domain"
)

// TaskRepository is the durable audit trail behind the Redis Task Store. It
// also answers status queries for tasks the store has already evicted.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	// SetOutcome writes a terminal result onto the task row unless the row is
	// already terminal (terminal-wins, mirroring the store).
	SetOutcome(ctx context.Context, res *domain.ResultMessage) error
	// RecordResult appends the result message to the audit log. Every
	// delivery is recorded, including duplicates and results arriving for
	// already-canceled tasks.
	RecordResult(ctx context.Context, res *domain.ResultMessage) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.Task, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository wraps a pgxpool with the TaskRepository interface.
func NewRepository(pool *pgxpool.Pool) TaskRepository {
	return &repository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func (r *repository) Create(ctx context.Context, task *domain.Task) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO translation_tasks
			(id, target_language, source_text, status, attempts, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
	`,
		task.ID, task.TargetLanguage, task.SourceText, string(task.Status),
		task.Attempts, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE translation_tasks
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update status for task %s: %w", id, err)
	}
	return nil
}

func (r *repository) SetOutcome(ctx context.Context, res *domain.ResultMessage) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE translation_tasks
		SET status = $1, result_text = $2, error = $3, attempts = GREATEST(attempts, $4), updated_at = $5
		WHERE id = $6 AND status NOT IN ('completed', 'failed', 'canceled')
	`,
		string(res.Status), nullable(res.ArtifactContent), nullable(res.ErrorDetail),
		res.Attempts, time.Now().UTC(), res.TaskID,
	)
	if err != nil {
		return fmt.Errorf("set outcome for task %s: %w", res.TaskID, err)
	}
	return nil
}

func (r *repository) RecordResult(ctx context.Context, res *domain.ResultMessage) error {
	processedAt := res.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_results
			(id, task_id, status, artifact_content, error_detail, attempts, processed_at, recorded_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.New().String(), res.TaskID, string(res.Status),
		nullable(res.ArtifactContent), nullable(res.ErrorDetail),
		res.Attempts, processedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record result for task %s: %w", res.TaskID, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, target_language, source_text, status, result_text, error, attempts, created_at, updated_at
		FROM translation_tasks
		WHERE id = $1
	`, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TaskNotFoundError{TaskID: id}
		}
		return nil, err
	}
	return task, nil
}

func (r *repository) ListRecent(ctx context.Context, limit int) ([]*domain.Task, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, target_language, source_text, status, result_text, error, attempts, created_at, updated_at
		FROM translation_tasks
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// scanTask reads a task row from any pgx row type.
func scanTask(row interface {
	Scan(...any) error
}) (*domain.Task, error) {
	var task domain.Task
	var statusStr string
	var resultText, errText *string
	err := row.Scan(
		&task.ID, &task.TargetLanguage, &task.SourceText, &statusStr,
		&resultText, &errText, &task.Attempts, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.Status = domain.Status(statusStr)
	if resultText != nil {
		task.ResultText = *resultText
	}
	if errText != nil {
		task.Error = *errText
	}
	return &task, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
