// Package domain defines the pipeline vocabulary and error kinds shared
// across the application.
package domain

import "fmt"

// MissingInputError indicates a required input file is absent.
type MissingInputError struct {
	Message string
}

func (e *MissingInputError) Error() string { return e.Message }

// MissingUpstreamError indicates a stage's required table or view does not
// exist because an earlier stage was never run.
type MissingUpstreamError struct {
	Message string
}

func (e *MissingUpstreamError) Error() string { return e.Message }

// ValidationError indicates invalid input: an unsupported mode, a drop-helper
// object-kind misuse, or a malformed relation graph.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrMissingInput creates a MissingInputError with a formatted message.
func ErrMissingInput(format string, args ...interface{}) *MissingInputError {
	return &MissingInputError{Message: fmt.Sprintf(format, args...)}
}

// ErrMissingUpstream creates a MissingUpstreamError with a formatted message.
func ErrMissingUpstream(format string, args ...interface{}) *MissingUpstreamError {
	return &MissingUpstreamError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
