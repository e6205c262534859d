package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passadis/azure-a2a-translation/internal/domain"
	"github.com/passadis/azure-a2a-translation/internal/queue"
	"github.com/passadis/azure-a2a-translation/services/gateway"
)

// ── mocks ────────────────────────────────────────────────────────────────────

type fakeQueue struct {
	enqueued [][]byte
	enqErr   error
}

func (q *fakeQueue) Enqueue(_ context.Context, _ string, body []byte) (string, error) {
	if q.enqErr != nil {
		return "", q.enqErr
	}
	q.enqueued = append(q.enqueued, body)
	return fmt.Sprintf("m%d", len(q.enqueued)), nil
}

func (q *fakeQueue) Dequeue(_ context.Context, _ string, _ int, _ time.Duration) ([]queue.Message, error) {
	return nil, nil
}
func (q *fakeQueue) Ack(_ context.Context, _ string, _ string) error { return nil }
func (q *fakeQueue) ExtendVisibility(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}

type fakeStore struct {
	tasks         map[string]*domain.Task
	markQueuedErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*domain.Task)}
}

func (s *fakeStore) Create(_ context.Context, task *domain.Task) error {
	if _, ok := s.tasks[task.ID]; ok {
		return &domain.TaskExistsError{TaskID: task.ID}
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, &domain.TaskNotFoundError{TaskID: id}
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) MarkQueued(_ context.Context, id string) error {
	if s.markQueuedErr != nil {
		return s.markQueuedErr
	}
	s.tasks[id].Status = domain.StatusQueued
	return nil
}

func (s *fakeStore) ApplyResult(_ context.Context, res *domain.ResultMessage) (bool, error) {
	t, ok := s.tasks[res.TaskID]
	if !ok {
		return false, &domain.TaskNotFoundError{TaskID: res.TaskID}
	}
	if t.Status.IsTerminal() {
		return false, nil
	}
	t.Status = res.Status
	t.ResultText = res.ArtifactContent
	t.Error = res.ErrorDetail
	return true, nil
}

func (s *fakeStore) Fail(_ context.Context, id, reason string) error {
	s.tasks[id].Status = domain.StatusFailed
	s.tasks[id].Error = reason
	return nil
}

func (s *fakeStore) Cancel(_ context.Context, id string) (domain.Status, error) {
	t, ok := s.tasks[id]
	if !ok {
		return "", &domain.TaskNotFoundError{TaskID: id}
	}
	if t.Status.IsTerminal() {
		return t.Status, &domain.AlreadyTerminalError{TaskID: id, Status: t.Status}
	}
	t.Status = domain.StatusCanceled
	return domain.StatusCanceled, nil
}

type fakeRepo struct {
	recent []*domain.Task
}

func (r *fakeRepo) Create(_ context.Context, _ *domain.Task) error { return nil }
func (r *fakeRepo) UpdateStatus(_ context.Context, _ string, _ domain.Status) error {
	return nil
}
func (r *fakeRepo) SetOutcome(_ context.Context, _ *domain.ResultMessage) error   { return nil }
func (r *fakeRepo) RecordResult(_ context.Context, _ *domain.ResultMessage) error { return nil }
func (r *fakeRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	return nil, &domain.TaskNotFoundError{TaskID: id}
}
func (r *fakeRepo) ListRecent(_ context.Context, _ int) ([]*domain.Task, error) {
	return r.recent, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

type env struct {
	store  *fakeStore
	repo   *fakeRepo
	queue  *fakeQueue
	router *chi.Mux
}

func newTestEnv() *env {
	store := newFakeStore()
	repo := &fakeRepo{}
	q := &fakeQueue{}
	svc := gateway.NewService(store, repo, q, nil, "translation-jobs", "el", slog.Default())
	card := gateway.NewAgentCard("http://localhost:8080")
	rest := NewREST(svc, card, slog.Default())
	rpc := NewJSONRPC(svc, slog.Default())

	r := chi.NewRouter()
	r.Post("/", rpc.ServeHTTP)
	r.Post("/execute_task", rest.ExecuteTask)
	r.Get("/task_status/{task_id}", rest.TaskStatus)
	r.Get("/task_history", rest.TaskHistory)
	r.Get("/agent-card", rest.AgentCard)
	r.Get("/health", rest.Health)

	return &env{store: store, repo: repo, queue: q, router: r}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) rpc(t *testing.T, method string, params any) (json.RawMessage, *rpcError) {
	t.Helper()
	rawParams, err := json.Marshal(params)
	require.NoError(t, err)
	rec := e.do(t, http.MethodPost, "/", map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  json.RawMessage(rawParams),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Result, resp.Error
}

func executeTaskBody(taskID, lang, content string) map[string]any {
	return map[string]any{
		"envelope": map[string]string{"task_id": taskID, "target_language": lang},
		"parts":    map[string]string{"document_content": content},
	}
}

// ── REST tests ────────────────────────────────────────────────────────────────

func TestExecuteTask_Accepted(t *testing.T) {
	e := newTestEnv()

	rec := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("", "es", "Hello, world!"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ExecuteTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, "queued", resp.Status)

	require.Len(t, e.queue.enqueued, 1)
	var job domain.JobMessage
	require.NoError(t, json.Unmarshal(e.queue.enqueued[0], &job))
	assert.Equal(t, resp.TaskID, job.TaskID)
	assert.Equal(t, "es", job.TargetLanguage)
	assert.Equal(t, "Hello, world!", job.DocumentContent)
}

func TestExecuteTask_DefaultLanguageApplied(t *testing.T) {
	e := newTestEnv()

	rec := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("", "", "Hello"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job domain.JobMessage
	require.NoError(t, json.Unmarshal(e.queue.enqueued[0], &job))
	assert.Equal(t, "el", job.TargetLanguage)
}

func TestExecuteTask_EmptyContent_RejectedBeforeQueue(t *testing.T) {
	e := newTestEnv()

	rec := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("", "es", ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.queue.enqueued, "rejected submissions must not touch the queue")
	assert.Empty(t, e.store.tasks, "rejected submissions must not create a record")
}

func TestExecuteTask_DuplicateClientID_Conflict(t *testing.T) {
	e := newTestEnv()

	first := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("dup-1", "es", "hi"))
	require.Equal(t, http.StatusAccepted, first.Code)

	second := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("dup-1", "es", "hi again"))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Len(t, e.queue.enqueued, 1)
}

func TestExecuteTask_EnqueueFails_TaskFailed(t *testing.T) {
	e := newTestEnv()
	e.queue.enqErr = assert.AnError

	rec := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("t-enq", "es", "hi"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The record exists but must not be stuck in submitted.
	assert.Equal(t, domain.StatusFailed, e.store.tasks["t-enq"].Status)
}

func TestExecuteTask_MarkQueuedFails_ReportsStoreStatus(t *testing.T) {
	e := newTestEnv()
	e.store.markQueuedErr = assert.AnError

	rec := e.do(t, http.MethodPost, "/execute_task", executeTaskBody("t-mq", "es", "hi"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ExecuteTaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	// The response must mirror what the store holds, not an optimistic queued.
	assert.Equal(t, "submitted", resp.Status)
	assert.Equal(t, domain.StatusSubmitted, e.store.tasks["t-mq"].Status)
	assert.Len(t, e.queue.enqueued, 1, "the job itself is still dispatched")
}

func TestTaskStatus_Found(t *testing.T) {
	e := newTestEnv()
	e.store.tasks["t1"] = &domain.Task{
		ID: "t1", Status: domain.StatusCompleted, ResultText: "Hola", Attempts: 2,
	}

	rec := e.do(t, http.MethodGet, "/task_status/t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "Hola", resp.ResultText)
	assert.Equal(t, 2, resp.Attempts)
}

func TestTaskStatus_NotFound(t *testing.T) {
	e := newTestEnv()

	rec := e.do(t, http.MethodGet, "/task_status/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHistory_ReturnsAuditRows(t *testing.T) {
	e := newTestEnv()
	e.repo.recent = []*domain.Task{
		{ID: "t2", Status: domain.StatusCompleted},
		{ID: "t1", Status: domain.StatusFailed},
	}

	rec := e.do(t, http.MethodGet, "/task_history?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tasks []TaskStatusResponse `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "t2", resp.Tasks[0].TaskID)
}

func TestAgentCard_AdvertisesTranslationSkill(t *testing.T) {
	e := newTestEnv()

	rec := e.do(t, http.MethodGet, "/agent-card", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var card gateway.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "translation-agent-v1", card.AgentID)
	assert.NotEmpty(t, card.Skills)
}

func TestHealth_OK(t *testing.T) {
	e := newTestEnv()

	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ── JSON-RPC tests ────────────────────────────────────────────────────────────

func sendParamsFor(taskID, lang, text string) map[string]any {
	parts := []map[string]any{{"kind": "text", "text": text}}
	if lang != "" {
		parts = append(parts, map[string]any{
			"kind": "data",
			"data": map[string]string{"target_language": lang},
		})
	}
	return map[string]any{
		"message": map[string]any{
			"messageId": "msg-1",
			"taskId":    taskID,
			"role":      "user",
			"parts":     parts,
		},
	}
}

func TestJSONRPC_MessageSend_ReturnsWorkingTask(t *testing.T) {
	e := newTestEnv()

	result, rpcErr := e.rpc(t, "message/send", sendParamsFor("", "es", "Hello, world!"))
	require.Nil(t, rpcErr)

	var task taskView
	require.NoError(t, json.Unmarshal(result, &task))
	assert.Equal(t, "task", task.Kind)
	assert.Equal(t, "working", task.Status.State)
	assert.NotEmpty(t, task.ID)
	require.Len(t, e.queue.enqueued, 1)
}

func TestJSONRPC_MessageSend_NoTextPart_InvalidParams(t *testing.T) {
	e := newTestEnv()

	_, rpcErr := e.rpc(t, "message/send", map[string]any{
		"message": map[string]any{"parts": []map[string]any{{"kind": "data", "data": map[string]string{}}}},
	})
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeInvalidParams, rpcErr.Code)
	assert.Empty(t, e.queue.enqueued)
}

func TestJSONRPC_TasksGet_CompletedTaskCarriesArtifact(t *testing.T) {
	e := newTestEnv()
	e.store.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusCompleted, ResultText: "Hola, mundo!"}

	result, rpcErr := e.rpc(t, "tasks/get", map[string]string{"id": "t1"})
	require.Nil(t, rpcErr)

	var task taskView
	require.NoError(t, json.Unmarshal(result, &task))
	assert.Equal(t, "completed", task.Status.State)
	require.NotNil(t, task.Artifact)
	require.Len(t, task.Artifact.Parts, 1)
	assert.Equal(t, "Hola, mundo!", task.Artifact.Parts[0].Text)
}

func TestJSONRPC_TasksGet_Unknown_TaskNotFoundCode(t *testing.T) {
	e := newTestEnv()

	_, rpcErr := e.rpc(t, "tasks/get", map[string]string{"id": "ghost"})
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeTaskNotFound, rpcErr.Code)
}

func TestJSONRPC_TasksCancel_QueuedTask(t *testing.T) {
	e := newTestEnv()
	e.store.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusQueued}

	result, rpcErr := e.rpc(t, "tasks/cancel", map[string]string{"id": "t1"})
	require.Nil(t, rpcErr)

	var task taskView
	require.NoError(t, json.Unmarshal(result, &task))
	assert.Equal(t, "canceled", task.Status.State)
	assert.Equal(t, domain.StatusCanceled, e.store.tasks["t1"].Status)
}

func TestJSONRPC_TasksCancel_CompletedTask_NotCancelable(t *testing.T) {
	e := newTestEnv()
	e.store.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusCompleted}

	_, rpcErr := e.rpc(t, "tasks/cancel", map[string]string{"id": "t1"})
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeNotCancelable, rpcErr.Code)
	assert.Equal(t, domain.StatusCompleted, e.store.tasks["t1"].Status)
}

func TestJSONRPC_UnknownMethod(t *testing.T) {
	e := newTestEnv()

	_, rpcErr := e.rpc(t, "tasks/resubscribe", map[string]string{"id": "t1"})
	require.NotNil(t, rpcErr)
	assert.Equal(t, codeMethodNotFound, rpcErr.Code)
}

func TestJSONRPC_ParseError(t *testing.T) {
	e := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var resp struct {
		Error *rpcError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeParseError, resp.Error.Code)
}
