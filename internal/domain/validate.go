package domain

import (
	"fmt"
	"strings"
)

// ValidateSubmission checks a submission before the task touches the store or
// the jobs queue (fail fast, no partial enqueue). supported reports whether a
// language code is accepted by the translation provider; a nil func skips
// that check.
func ValidateSubmission(documentContent, targetLanguage string, supported func(string) bool) error {
	if strings.TrimSpace(documentContent) == "" {
		return &ValidationError{Field: "document_content", Reason: "must not be empty"}
	}
	if strings.TrimSpace(targetLanguage) == "" {
		return &ValidationError{Field: "target_language", Reason: "must not be empty"}
	}
	if supported != nil && !supported(targetLanguage) {
		return &ValidationError{
			Field:  "target_language",
			Reason: fmt.Sprintf("language code %q is not supported by the translation provider", targetLanguage),
		}
	}
	return nil
}
