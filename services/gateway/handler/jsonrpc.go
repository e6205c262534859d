package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/passadis/azure-a2a-translation/internal/domain"
	"github.com/passadis/azure-a2a-translation/services/gateway"
)

// JSON-RPC 2.0 error codes. The -32001/-32002 values follow the A2A
// convention for task-not-found and task-not-cancelable.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeTaskNotFound   = -32001
	codeNotCancelable  = -32002
)

// JSONRPC exposes the A2A binding (message/send, tasks/get, tasks/cancel)
// at a single POST endpoint.
type JSONRPC struct {
	svc    *gateway.Service
	logger *slog.Logger
}

// NewJSONRPC creates the JSON-RPC handler.
func NewJSONRPC(svc *gateway.Service, logger *slog.Logger) *JSONRPC {
	return &JSONRPC{svc: svc, logger: logger}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// messagePart is one entry of an A2A message's parts array. kind selects
// which of the remaining fields is meaningful — the dynamic envelopes of the
// protocol become explicit tagged variants validated here at the boundary.
type messagePart struct {
	Kind string          `json:"kind"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sendParams struct {
	Message struct {
		MessageID string        `json:"messageId"`
		TaskID    string        `json:"taskId"`
		Role      string        `json:"role"`
		Parts     []messagePart `json:"parts"`
	} `json:"message"`
}

type taskIDParams struct {
	ID string `json:"id"`
}

// taskView is the A2A-shaped task object returned by all three methods.
type taskView struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Status   taskStatusView `json:"status"`
	Artifact *artifactView  `json:"artifact,omitempty"`
}

type taskStatusView struct {
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type artifactView struct {
	ArtifactID string        `json:"artifactId"`
	Parts      []messagePart `json:"parts"`
}

// a2aState maps internal statuses onto the protocol's state names; queued
// tasks report as "working" since the distinction is an implementation
// detail of the queue hand-off.
func a2aState(s domain.Status) string {
	if s == domain.StatusQueued {
		return "working"
	}
	return string(s)
}

func viewOf(task *domain.Task) taskView {
	v := taskView{
		ID:   task.ID,
		Kind: "task",
		Status: taskStatusView{
			State:     a2aState(task.Status),
			Error:     task.Error,
			Timestamp: task.UpdatedAt,
		},
	}
	if task.Status == domain.StatusCompleted {
		v.Artifact = &artifactView{
			ArtifactID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(task.ID)).String(),
			Parts:      []messagePart{{Kind: "text", Text: task.ResultText}},
		}
	}
	return v
}

// ServeHTTP handles POST / JSON-RPC requests.
func (h *JSONRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reply(w, nil, nil, &rpcError{Code: codeParseError, Message: "parse error"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.reply(w, req.ID, nil, &rpcError{Code: codeInvalidRequest, Message: "invalid request"})
		return
	}

	switch req.Method {
	case "message/send":
		h.messageSend(w, r, req)
	case "tasks/get":
		h.tasksGet(w, r, req)
	case "tasks/cancel":
		h.tasksCancel(w, r, req)
	default:
		h.reply(w, req.ID, nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + req.Method})
	}
}

func (h *JSONRPC) messageSend(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params sendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		h.reply(w, req.ID, nil, &rpcError{Code: codeInvalidParams, Message: "invalid params"})
		return
	}

	var text, targetLanguage string
	for _, part := range params.Message.Parts {
		switch part.Kind {
		case "text":
			if text == "" {
				text = part.Text
			}
		case "data":
			var data struct {
				TargetLanguage string `json:"target_language"`
			}
			if err := json.Unmarshal(part.Data, &data); err == nil && data.TargetLanguage != "" {
				targetLanguage = data.TargetLanguage
			}
		}
	}
	if text == "" {
		h.reply(w, req.ID, nil, &rpcError{Code: codeInvalidParams, Message: "message must contain a non-empty text part"})
		return
	}

	task, err := h.svc.Submit(r.Context(), params.Message.TaskID, targetLanguage, text)
	if err != nil {
		h.reply(w, req.ID, nil, h.classify(err))
		return
	}
	h.reply(w, req.ID, viewOf(task), nil)
}

func (h *JSONRPC) tasksGet(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		h.reply(w, req.ID, nil, &rpcError{Code: codeInvalidParams, Message: "params.id is required"})
		return
	}

	task, err := h.svc.Status(r.Context(), params.ID)
	if err != nil {
		h.reply(w, req.ID, nil, h.classify(err))
		return
	}
	h.reply(w, req.ID, viewOf(task), nil)
}

func (h *JSONRPC) tasksCancel(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params taskIDParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.ID == "" {
		h.reply(w, req.ID, nil, &rpcError{Code: codeInvalidParams, Message: "params.id is required"})
		return
	}

	task, err := h.svc.Cancel(r.Context(), params.ID)
	if err != nil {
		h.reply(w, req.ID, nil, h.classify(err))
		return
	}
	h.reply(w, req.ID, viewOf(task), nil)
}

// classify maps domain errors onto JSON-RPC error codes; anything unexpected
// is logged and reported as a generic server error without internals.
func (h *JSONRPC) classify(err error) *rpcError {
	var verr *domain.ValidationError
	var notFound *domain.TaskNotFoundError
	var terminal *domain.AlreadyTerminalError
	var exists *domain.TaskExistsError
	switch {
	case errors.As(err, &verr):
		return &rpcError{Code: codeInvalidParams, Message: verr.Error()}
	case errors.As(err, &notFound):
		return &rpcError{Code: codeTaskNotFound, Message: notFound.Error()}
	case errors.As(err, &terminal):
		return &rpcError{Code: codeNotCancelable, Message: terminal.Error()}
	case errors.As(err, &exists):
		return &rpcError{Code: codeInvalidParams, Message: exists.Error()}
	default:
		h.logger.Error("jsonrpc request failed", slog.String("error", err.Error()))
		return &rpcError{Code: codeServerError, Message: "internal error"}
	}
}

func (h *JSONRPC) reply(w http.ResponseWriter, id json.RawMessage, result any, rpcErr *rpcError) {
	writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
		Error:   rpcErr,
	})
}
