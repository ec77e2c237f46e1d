package service

import (
	"errors"
	"fmt"

	"github.com/roamium/discovery/internal/validation"
)

// InvalidParameterError indicates malformed caller input.
type InvalidParameterError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *InvalidParameterError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ExternalSourceError wraps a failure of a remote place source. Callers may
// retry; the pipeline itself never does.
type ExternalSourceError struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *ExternalSourceError) Error() string {
	return fmt.Sprintf("external source %s: %v", e.Source, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ExternalSourceError) Unwrap() error {
	return e.Err
}

// Temporary reports that the failure is retryable.
func (e *ExternalSourceError) Temporary() bool {
	return true
}

// invalidParameter converts a validation failure into an InvalidParameterError
// naming the first offending field.
func invalidParameter(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &InvalidParameterError{Field: verrs[0].Field, Message: verrs.Error()}
	}
	return &InvalidParameterError{Message: err.Error()}
}
