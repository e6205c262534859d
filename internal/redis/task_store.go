// Package redis holds the shared Task Store. Every gateway replica and the
// reconciler read and write the same Redis keys, so a status poll is answered
// correctly no matter which replica serves it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/passadis/azure-a2a-translation/internal/domain"
)

// DefaultRetention bounds how long a task record is queryable. The store is
// not an unbounded append log; evicted tasks fall back to the Postgres audit
// trail.
const DefaultRetention = 24 * time.Hour

func taskKey(taskID string) string { return "task:" + taskID }

// TaskStore maps task IDs to lifecycle state with per-key atomic updates.
type TaskStore interface {
	// Create stores a new task record. Fails with TaskExistsError when the
	// (possibly client-supplied) ID is already taken.
	Create(ctx context.Context, task *domain.Task) error

	// Get returns the task or TaskNotFoundError.
	Get(ctx context.Context, taskID string) (*domain.Task, error)

	// MarkQueued moves a submitted task to queued once its job message is
	// durably enqueued. A task in any other state is left untouched.
	MarkQueued(ctx context.Context, taskID string) error

	// ApplyResult folds a worker outcome into the task, terminal-wins: if the
	// task already reached a terminal status the call is a no-op and returns
	// false, so duplicate result deliveries never regress state.
	ApplyResult(ctx context.Context, res *domain.ResultMessage) (bool, error)

	// Fail forces a non-terminal task to failed with a synthetic error,
	// used when the job message could not be enqueued after the record
	// was created.
	Fail(ctx context.Context, taskID, reason string) error

	// Cancel marks a non-terminal task canceled (best-effort; an in-flight
	// job message is not retracted). Returns AlreadyTerminalError with the
	// current status when the task is finished, TaskNotFoundError when
	// unknown.
	Cancel(ctx context.Context, taskID string) (domain.Status, error)
}

// All mutations load the stored JSON, check the terminal guard and write back
// under a single Lua invocation, which is what makes concurrent reconciler
// and gateway updates for the same ID safe.
var markQueuedScript = goredis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return -1
end
local t = cjson.decode(raw)
if t.status ~= "submitted" then
	return 0
end
t.status = "queued"
t.updated_at = ARGV[1]
redis.call("SET", KEYS[1], cjson.encode(t), "KEEPTTL")
return 1
`)

var applyResultScript = goredis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return -1
end
local t = cjson.decode(raw)
if t.status == "completed" or t.status == "failed" or t.status == "canceled" then
	return 0
end
t.status = ARGV[1]
if ARGV[1] == "completed" then
	t.result_text = ARGV[2]
	t.error = nil
else
	t.error = ARGV[3]
	t.result_text = nil
end
local attempts = tonumber(ARGV[4])
if attempts and attempts > 0 then
	t.attempts = attempts
end
t.updated_at = ARGV[5]
redis.call("SET", KEYS[1], cjson.encode(t), "KEEPTTL")
return 1
`)

var cancelScript = goredis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
	return {-1, ""}
end
local t = cjson.decode(raw)
if t.status == "completed" or t.status == "failed" or t.status == "canceled" then
	return {0, t.status}
end
t.status = "canceled"
t.updated_at = ARGV[1]
redis.call("SET", KEYS[1], cjson.encode(t), "KEEPTTL")
return {1, "canceled"}
`)

type taskStore struct {
	client    *goredis.Client
	retention time.Duration
}

// NewTaskStore creates a Redis-backed TaskStore. retention <= 0 selects
// DefaultRetention.
func NewTaskStore(client *goredis.Client, retention time.Duration) TaskStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &taskStore{client: client, retention: retention}
}

// NewClient creates a Redis client for store access.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func (s *taskStore) Create(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	ok, err := s.client.SetNX(ctx, taskKey(task.ID), data, s.retention).Result()
	if err != nil {
		return fmt.Errorf("redis create task %s: %w", task.ID, err)
	}
	if !ok {
		return &domain.TaskExistsError{TaskID: task.ID}
	}
	return nil
}

func (s *taskStore) Get(ctx context.Context, taskID string) (*domain.Task, error) {
	raw, err := s.client.Get(ctx, taskKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, &domain.TaskNotFoundError{TaskID: taskID}
		}
		return nil, fmt.Errorf("redis get task %s: %w", taskID, err)
	}
	var task domain.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func (s *taskStore) MarkQueued(ctx context.Context, taskID string) error {
	n, err := markQueuedScript.Run(ctx, s.client, []string{taskKey(taskID)}, now()).Int()
	if err != nil {
		return fmt.Errorf("redis mark queued %s: %w", taskID, err)
	}
	if n == -1 {
		return &domain.TaskNotFoundError{TaskID: taskID}
	}
	return nil
}

func (s *taskStore) ApplyResult(ctx context.Context, res *domain.ResultMessage) (bool, error) {
	n, err := applyResultScript.Run(ctx, s.client,
		[]string{taskKey(res.TaskID)},
		string(res.Status), res.ArtifactContent, res.ErrorDetail, res.Attempts, now(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis apply result for %s: %w", res.TaskID, err)
	}
	switch n {
	case -1:
		return false, &domain.TaskNotFoundError{TaskID: res.TaskID}
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

func (s *taskStore) Fail(ctx context.Context, taskID, reason string) error {
	_, err := s.ApplyResult(ctx, &domain.ResultMessage{
		TaskID:      taskID,
		Status:      domain.StatusFailed,
		ErrorDetail: reason,
	})
	return err
}

func (s *taskStore) Cancel(ctx context.Context, taskID string) (domain.Status, error) {
	raw, err := cancelScript.Run(ctx, s.client, []string{taskKey(taskID)}, now()).Slice()
	if err != nil {
		return "", fmt.Errorf("redis cancel task %s: %w", taskID, err)
	}
	if len(raw) != 2 {
		return "", fmt.Errorf("redis cancel task %s: unexpected reply %v", taskID, raw)
	}
	code, _ := raw[0].(int64)
	status, _ := raw[1].(string)
	switch code {
	case -1:
		return "", &domain.TaskNotFoundError{TaskID: taskID}
	case 0:
		return domain.Status(status), &domain.AlreadyTerminalError{TaskID: taskID, Status: domain.Status(status)}
	default:
		return domain.StatusCanceled, nil
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
