package domain_test

import (
	"strings"
	"testing"

	"github.com/passadis/azure-a2a-translation/internal/domain"
)

func TestTaskNotFoundError(t *testing.T) {
	err := &domain.TaskNotFoundError{TaskID: "abc-123"}
	if !strings.Contains(err.Error(), "abc-123") {
		t.Errorf("error message should contain task ID, got: %q", err.Error())
	}
}

func TestTaskExistsError(t *testing.T) {
	err := &domain.TaskExistsError{TaskID: "dup-1"}
	if !strings.Contains(err.Error(), "dup-1") {
		t.Errorf("error message should contain task ID, got: %q", err.Error())
	}
}

func TestAlreadyTerminalError(t *testing.T) {
	err := &domain.AlreadyTerminalError{TaskID: "xyz-789", Status: domain.StatusCompleted}
	msg := err.Error()
	if !strings.Contains(msg, "xyz-789") {
		t.Errorf("error message should contain task ID, got: %q", msg)
	}
	if !strings.Contains(msg, "completed") {
		t.Errorf("error message should contain status, got: %q", msg)
	}
}

func TestValidationError(t *testing.T) {
	err := &domain.ValidationError{Field: "target_language", Reason: "must not be empty"}
	msg := err.Error()
	if !strings.Contains(msg, "target_language") {
		t.Errorf("error message should contain field, got: %q", msg)
	}
	if !strings.Contains(msg, "must not be empty") {
		t.Errorf("error message should contain reason, got: %q", msg)
	}
}

func TestAllErrorTypesImplementError(t *testing.T) {
	// Compile-time interface checks via assignment to error variables.
	var _ error = &domain.TaskNotFoundError{}
	var _ error = &domain.TaskExistsError{}
	var _ error = &domain.AlreadyTerminalError{}
	var _ error = &domain.ValidationError{}
}
