package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/passadis/azure-a2a-translation/internal/domain"
	"github.com/passadis/azure-a2a-translation/services/gateway"
)

// REST exposes the legacy HTTP binding of the gateway operations.
type REST struct {
	svc    *gateway.Service
	card   gateway.AgentCard
	logger *slog.Logger
}

// NewREST creates the legacy REST handler.
func NewREST(svc *gateway.Service, card gateway.AgentCard, logger *slog.Logger) *REST {
	return &REST{svc: svc, card: card, logger: logger}
}

// ExecuteTaskRequest is the POST /execute_task body: an envelope with task
// metadata and a parts section with the content, as the legacy clients send.
type ExecuteTaskRequest struct {
	Envelope struct {
		TaskID         string `json:"task_id"`
		TargetLanguage string `json:"target_language"`
	} `json:"envelope"`
	Parts struct {
		DocumentContent string `json:"document_content"`
	} `json:"parts"`
}

// ExecuteTaskResponse is the 202 response body.
type ExecuteTaskResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskStatusResponse is the GET /task_status/{task_id} response body.
type TaskStatusResponse struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	ResultText string `json:"result_text,omitempty"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
}

// ExecuteTask handles POST /execute_task.
func (h *REST) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	var req ExecuteTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := h.svc.Submit(r.Context(), req.Envelope.TaskID, req.Envelope.TargetLanguage, req.Parts.DocumentContent)
	if err != nil {
		var verr *domain.ValidationError
		var exists *domain.TaskExistsError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.As(err, &exists):
			writeError(w, http.StatusConflict, exists.Error())
		default:
			h.logger.Error("submit failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "failed to queue task")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ExecuteTaskResponse{
		TaskID:  task.ID,
		Status:  string(task.Status),
		Message: "Task received. A worker will process it shortly.",
	})
}

// TaskStatus handles GET /task_status/{task_id}.
func (h *REST) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	task, err := h.svc.Status(r.Context(), taskID)
	if err != nil {
		var notFound *domain.TaskNotFoundError
		if errors.As(err, &notFound) {
			writeError(w, http.StatusNotFound, notFound.Error())
			return
		}
		h.logger.Error("status lookup failed",
			slog.String("task_id", taskID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to retrieve task")
		return
	}

	writeJSON(w, http.StatusOK, TaskStatusResponse{
		TaskID:     task.ID,
		Status:     string(task.Status),
		ResultText: task.ResultText,
		Error:      task.Error,
		Attempts:   task.Attempts,
	})
}

// TaskHistory handles GET /task_history.
func (h *REST) TaskHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tasks, err := h.svc.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("history lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list task history")
		return
	}

	out := make([]TaskStatusResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, TaskStatusResponse{
			TaskID:     task.ID,
			Status:     string(task.Status),
			ResultText: task.ResultText,
			Error:      task.Error,
			Attempts:   task.Attempts,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

// AgentCard handles GET /agent-card and GET /.well-known/agent.json.
func (h *REST) AgentCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.card)
}

// Health handles GET /health — liveness plus a store connectivity probe,
// which is what the container platform's probes expect.
func (h *REST) Health(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Healthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Healthz handles GET /healthz — pure liveness, no dependencies.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Healthy(r.Context()) {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "failed", "error": msg})
}
