package subscribe

import (
	"context"
	"errors"
	"fmt"
)

// Reason categorizes subscribe failures.
type Reason string

const (
	ReasonTimeout           Reason = "timeout"
	ReasonHostUnreachable   Reason = "hostUnreachable"
	ReasonConnectionReset   Reason = "connectionReset"
	ReasonBadStatus         Reason = "badStatus"
	ReasonCancelled         Reason = "cancelled"
	ReasonMalformedResponse Reason = "malformedResponse"
	ReasonUnsupported       Reason = "unsupported"
	ReasonUnknown           Reason = "unknown"

	// ReasonMessageCountExceeded is reported to listeners when a receive
	// returns more messages than the configured maximum.
	ReasonMessageCountExceeded Reason = "messageCountExceededMaximum"
)

// Retry categories reported for ReasonBadStatus, split by status class.
const (
	CategoryClientError = "clientError"
	CategoryServerError = "serverError"
)

// Error is a structured subscribe failure carried inside events and states.
type Error struct {
	Reason Reason

	// StatusCode is the HTTP status, when the server answered.
	StatusCode int

	Err error
}

// NewError creates an Error with the given reason and cause.
func NewError(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// NewStatusError creates a ReasonBadStatus error.
func NewStatusError(statusCode int, err error) *Error {
	return &Error{Reason: ReasonBadStatus, StatusCode: statusCode, Err: err}
}

// ErrMessageCountExceeded is the error carried by the errorReceived status
// when a batch is rejected for its size.
var ErrMessageCountExceeded = &Error{Reason: ReasonMessageCountExceeded}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by reason, so errors.Is(err, ErrMessageCountExceeded)
// works for any error with that reason.
func (e *Error) Is(target error) bool {
	var se *Error
	if errors.As(target, &se) {
		return se.Reason == e.Reason && (se.StatusCode == 0 || se.StatusCode == e.StatusCode)
	}
	return false
}

// Category implements retry.Categorized.
func (e *Error) Category() string {
	if e.Reason == ReasonBadStatus {
		if e.StatusCode >= 500 {
			return CategoryServerError
		}
		return CategoryClientError
	}
	return string(e.Reason)
}

// AsError converts any error to *Error. Context errors map to
// ReasonCancelled or ReasonTimeout; anything unrecognised is ReasonUnknown.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(ReasonCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ReasonTimeout, err)
	}
	return NewError(ReasonUnknown, err)
}

// IsCancelled reports whether err represents a cancelled request.
func IsCancelled(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason == ReasonCancelled
	}
	return errors.Is(err, context.Canceled)
}
