package tlcache

import (
	"errors"
	"fmt"
)

var (
	// ErrMixedScope is returned by BatchGet when keys do not share one
	// source language and target set.
	ErrMixedScope = errors.New("cache keys span more than one language scope")

	// ErrEmptyResponse is returned when the provider answers a non-empty
	// batch with no records.
	ErrEmptyResponse = errors.New("empty response from translation provider")

	// ErrEmptyRequest is returned when a request carries no items.
	ErrEmptyRequest = errors.New("request has no items")
)

// CodecError indicates a stored blob could not be encoded or decoded.
type CodecError struct {
	Message string
	Cause   error
}

func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("codec error: %s", e.Message)
}

func (e *CodecError) Unwrap() error {
	return e.Cause
}

// TransientBackendError indicates a storage failure that may succeed on retry
// (connection reset, pool exhaustion, lock timeout).
type TransientBackendError struct {
	Op    string
	Cause error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("transient backend error (%s): %v", e.Op, e.Cause)
}

func (e *TransientBackendError) Unwrap() error {
	return e.Cause
}

// PermanentBackendError indicates a storage failure that retrying cannot fix
// (constraint violation, syntax error, authentication failure).
type PermanentBackendError struct {
	Op    string
	Cause error
}

func (e *PermanentBackendError) Error() string {
	return fmt.Sprintf("backend error (%s): %v", e.Op, e.Cause)
}

func (e *PermanentBackendError) Unwrap() error {
	return e.Cause
}

// ExternalTranslateError indicates a translation provider failure.
type ExternalTranslateError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the call can be retried
}

func (e *ExternalTranslateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ExternalTranslateError) Unwrap() error {
	return e.Cause
}

// ValidationError describes why a translated item was kept out of the cache.
type ValidationError struct {
	Index  int // Position of the item in the request
	Lang   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Lang != "" {
		return fmt.Sprintf("validation failed for item %d (%s): %s", e.Index, e.Lang, e.Reason)
	}
	return fmt.Sprintf("validation failed for item %d: %s", e.Index, e.Reason)
}

// IsTransient reports whether err is a transient backend error.
func IsTransient(err error) bool {
	var transient *TransientBackendError
	return errors.As(err, &transient)
}
