package domain

import "fmt"

// TaskNotFoundError is returned when a task ID does not exist. This is
// ambiguous between "never existed" and "evicted by the retention policy";
// callers that have a durable fallback should consult it before surfacing
// the error.
type TaskNotFoundError struct {
	TaskID string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.TaskID)
}

// TaskExistsError is returned when creating a task with a client-supplied ID
// that is already present in the store.
type TaskExistsError struct {
	TaskID string
}

func (e *TaskExistsError) Error() string {
	return fmt.Sprintf("task already exists: %s", e.TaskID)
}

// AlreadyTerminalError is returned when cancelling a task that has already
// reached a terminal status. The terminal status is preserved.
type AlreadyTerminalError struct {
	TaskID string
	Status Status
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("task %s is already %s", e.TaskID, e.Status)
}

// ValidationError rejects malformed input before any queue interaction
// occurs. It is surfaced synchronously to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
