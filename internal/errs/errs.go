// Package errs defines the error taxonomy shared by the series engine.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindNotImplemented Kind = "NOT_IMPLEMENTED"
	KindStorage        Kind = "STORAGE_ERROR"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Error is a classified failure with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports malformed input or an input combination that is not allowed.
func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

// NotFound reports a missing entity or one that no longer matches a freshness rule.
func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

// Conflict reports a request that contradicts the current state of the data.
func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

// NotImplemented reports a recognised request that is not supported.
func NotImplemented(format string, args ...interface{}) *Error {
	return newError(KindNotImplemented, format, args...)
}

// Storage wraps a persistence failure.
func Storage(err error, message string) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of the first Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
