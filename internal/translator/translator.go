// Package translator wraps the external translation provider. Its single
// hard requirement is the transient-vs-permanent error classification: the
// worker's retry policy is only as good as this split is accurate.
package translator

import (
	"context"
	"errors"
	"fmt"
)

// Translator is the provider collaborator contract.
type Translator interface {
	// Translate converts text into the target language. Failures are either
	// *TransientError (retry later) or *PermanentError (will never succeed).
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// LanguageLister reports the language codes the provider accepts. The
// gateway validates submissions against this set instead of a hardcoded one.
type LanguageLister interface {
	Languages(ctx context.Context) ([]string, error)
}

// TransientError marks a failure worth retrying: network trouble, rate
// limits, provider 5xx. The worker leaves the job message unacked so the
// queue redelivers it after the visibility timeout.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient translator error during %s (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("transient translator error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix: rejected input,
// unsupported language, bad credentials. Reason is a classified message
// safe to surface to clients; provider response bodies stay out of it.
type PermanentError struct {
	Op     string
	Status int
	Reason string
}

func (e *PermanentError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("permanent translator error during %s (status %d): %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("permanent translator error during %s: %s", e.Op, e.Reason)
}

// IsTransient reports whether err should be retried via queue redelivery.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err can never succeed on retry.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
