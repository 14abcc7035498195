package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind categorizes why an envelope was rejected.
type ValidationKind string

const (
	// ValidationInvalidType means the type is absent or not recognized.
	ValidationInvalidType ValidationKind = "invalid_type"

	// ValidationMissingContext means the context is absent or not an object.
	ValidationMissingContext ValidationKind = "missing_context"

	// ValidationMissingField means a field required by the type is absent.
	ValidationMissingField ValidationKind = "missing_field"
)

// ValidationError is a client error raised before any upstream call.
type ValidationError struct {
	Kind   ValidationKind
	Type   RequestType
	Fields []string
}

// Error implements the error interface. The message is returned to the
// client as-is.
func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationInvalidType:
		return "invalid type"
	case ValidationMissingContext:
		return "context is required"
	case ValidationMissingField:
		verb := "is"
		if len(e.Fields) > 1 {
			verb = "are"
		}
		return fmt.Sprintf("%s %s required for %s", joinFields(e.Fields), verb, e.Type)
	default:
		return "invalid request"
	}
}

func joinFields(fields []string) string {
	switch len(fields) {
	case 0:
		return "fields"
	case 1:
		return fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + " and " + fields[len(fields)-1]
	}
}

// ErrInvalidType creates an invalid type error.
func ErrInvalidType() *ValidationError {
	return &ValidationError{Kind: ValidationInvalidType}
}

// ErrMissingContext creates a missing context error.
func ErrMissingContext() *ValidationError {
	return &ValidationError{Kind: ValidationMissingContext}
}

// ErrMissingField creates a missing field error for t naming fields.
func ErrMissingField(t RequestType, fields ...string) *ValidationError {
	return &ValidationError{Kind: ValidationMissingField, Type: t, Fields: fields}
}

// ErrEmptyCompletion is wrapped by an UpstreamError when a successful
// response carries no completion text.
var ErrEmptyCompletion = errors.New("upstream returned no choices")

// UpstreamError reports a failed call to the completion API. StatusCode is
// zero for transport-level failures, in which case Err holds the cause.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
	}
	if e.Err != nil {
		return "upstream request failed: " + e.Err.Error()
	}
	return "upstream request failed"
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether the failure happened before any HTTP status
// was received.
func (e *UpstreamError) IsTransport() bool {
	return e.StatusCode == 0
}
