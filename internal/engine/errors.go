package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running effects.
//
// Runtime errors never cross the engine boundary as failures of Send; they
// are logged and, where useful, returned from introspection helpers.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// InvocationID identifies the affected invocation, if any.
	InvocationID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownInvocation indicates the handler factory has no handler
	// for an invocation.
	ErrCodeUnknownInvocation RuntimeErrorCode = "UNKNOWN_INVOCATION"

	// ErrCodeEngineStopped indicates the engine no longer accepts events.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"
)

// ErrEngineStopped is returned by Run when the engine was stopped before it
// started.
var ErrEngineStopped = &RuntimeError{Code: ErrCodeEngineStopped, Message: "engine stopped"}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.InvocationID != "" {
		msg = fmt.Sprintf("%s (invocation=%s)", msg, e.InvocationID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is matches runtime errors by code.
func (e *RuntimeError) Is(target error) bool {
	var re *RuntimeError
	if errors.As(target, &re) {
		return re.Code == e.Code
	}
	return false
}

// NewUnknownInvocationError creates a RuntimeError for a missing handler.
func NewUnknownInvocationError(invocationID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:         ErrCodeUnknownInvocation,
		Message:      "no effect handler for invocation",
		InvocationID: invocationID,
		Err:          cause,
	}
}

// IsUnknownInvocation returns true if err is an unknown-invocation error.
// Uses errors.As to handle wrapped errors.
func IsUnknownInvocation(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeUnknownInvocation
	}
	return false
}
