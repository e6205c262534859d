package domain

import "time"

// JobMessage is the jobs-queue payload instructing a worker to translate
// specific content. It is immutable once enqueued; the queue owns it until a
// consumer deletes it after successful processing.
type JobMessage struct {
	TaskID          string            `json:"task_id"`
	TargetLanguage  string            `json:"target_language"`
	DocumentContent string            `json:"document_content"`
	Trace           map[string]string `json:"trace,omitempty"`
}

// ResultMessage is the results-queue payload carrying a terminal outcome back
// to the gateway side. ArtifactContent is set iff Status is completed,
// ErrorDetail iff failed. The results queue is at-least-once, so the
// reconciler must apply these idempotently.
type ResultMessage struct {
	TaskID          string            `json:"task_id"`
	Status          Status            `json:"status"`
	ArtifactContent string            `json:"artifact_content,omitempty"`
	ErrorDetail     string            `json:"error_detail,omitempty"`
	Attempts        int               `json:"attempts,omitempty"`
	ProcessedAt     time.Time         `json:"processed_at"`
	Trace           map[string]string `json:"trace,omitempty"`
}
