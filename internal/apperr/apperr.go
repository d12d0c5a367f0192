// Package apperr defines the error taxonomy shared by the plan
// generation pipeline and its HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError means the caller supplied malformed input or
// preferences. Fail fast, no retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// AIError means a model call failed, timed out, or returned output that
// did not match the requested schema. Tagged with the pipeline stage
// that issued the call. Retryable errors get a bounded number of
// re-attempts before surfacing.
type AIError struct {
	Stage     string
	Retryable bool
	Err       error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("ai call failed at stage %q: %v", e.Stage, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

func AI(stage string, retryable bool, err error) error {
	return &AIError{Stage: stage, Retryable: retryable, Err: err}
}

// ConflictError means the plan is already locked by another run. Never
// retried; the caller decides whether to re-request later.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %s is locked by another operation", e.Resource, e.ID)
}

func Conflict(resource, id string) error {
	return &ConflictError{Resource: resource, ID: id}
}

// NotFoundError means a referenced session, plan, or version does not
// exist. Fatal for the requesting operation.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAI(err error) bool {
	var ae *AIError
	return errors.As(err, &ae)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsRetryableAI reports whether err is an AIError worth one more attempt.
func IsRetryableAI(err error) bool {
	var ae *AIError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}
