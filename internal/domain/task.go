package domain

import "time"

// Status represents the lifecycle states of a translation task.
type Status string

const (
	// StatusSubmitted is the instant before the job message is durably
	// enqueued. A task never stays here long: it moves to queued on a
	// successful enqueue or directly to failed if the enqueue fails.
	StatusSubmitted Status = "submitted"
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Task is one client-requested translation job and its lifecycle record.
//
// ResultText and Error are mutually exclusive: both are empty while the
// task is non-terminal, and exactly one is set once it completes or fails.
type Task struct {
	ID             string    `json:"id"`
	TargetLanguage string    `json:"target_language"`
	SourceText     string    `json:"source_text"`
	Status         Status    `json:"status"`
	ResultText     string    `json:"result_text,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
