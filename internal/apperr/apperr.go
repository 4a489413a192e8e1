// Package apperr defines the error taxonomy shared across the trading core.
// Every error the core returns carries a Kind, a human message, and a
// context map so callers and logs can branch or report without parsing
// strings, the same way internal/cfg wraps its validation failures with
// fmt.Errorf but adds a stable, switchable code on top.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of handling policy (retry,
// surface, mark-intent-failed, ...). Kinds are not Go types; they are a
// closed set of string tags so callers can switch on them without an
// errors.As per kind.
type Kind string

const (
	ValidationFailed        Kind = "VALIDATION_FAILED"
	NotFound                Kind = "NOT_FOUND"
	DuplicatePosition       Kind = "DUPLICATE_POSITION"
	InvalidStatusTransition Kind = "INVALID_STATUS_TRANSITION"
	PositionLimitExceeded   Kind = "POSITION_LIMIT_EXCEEDED"
	DatabaseError           Kind = "DATABASE_ERROR"
	CloseFailed             Kind = "CLOSE_FAILED"
	APIError                Kind = "API_ERROR"
	ExchangeDivergence      Kind = "EXCHANGE_DIVERGENCE"
)

// Error is the error type returned across package boundaries in the
// trading core. Context carries arbitrary diagnostic fields (e.g. the
// "limit" field POSITION_LIMIT_EXCEEDED errors must surface).
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string, context map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: context}
}

// Wrap builds an Error around an underlying cause, preserving it for
// errors.Is/errors.As consumers.
func Wrap(kind Kind, message string, cause error, context map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Context: context, Cause: cause}
}

// Is reports whether err carries the given Kind, unwrapping *Error chains.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ae, ok := err.(*Error); ok && ae.Kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	ae, ok := err.(*Error)
	if !ok {
		return ""
	}
	return ae.Kind
}
