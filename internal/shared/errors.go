package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for transport-level mapping.
type ErrorKind int

const (
	// KindInternal is the default for unexpected failures.
	KindInternal ErrorKind = iota
	// KindUnauthorized indicates a missing or invalid principal.
	KindUnauthorized
	// KindForbidden indicates a valid principal acting outside its store.
	KindForbidden
	// KindNotFound indicates a missing product, room or item.
	KindNotFound
	// KindInvalidArgument indicates a rejected input value.
	KindInvalidArgument
	// KindConflict indicates insufficient stock or a lost concurrent write.
	KindConflict
)

// Error is the typed error returned by services.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// Is matches errors of the same kind and code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	if other.Code != "" && other.Code != e.Code {
		return false
	}
	return other.Kind == e.Kind
}

// NewError builds a typed error.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WrapError attaches a cause to a typed error.
func WrapError(kind ErrorKind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// Common sentinels shared across modules.
var (
	ErrUnauthorized = NewError(KindUnauthorized, "UNAUTHORIZED", "authentication required")
	ErrForbidden    = NewError(KindForbidden, "FORBIDDEN", "operation not allowed")
	ErrNotFound     = NewError(KindNotFound, "NOT_FOUND", "resource not found")
	ErrConflict     = NewError(KindConflict, "CONFLICT", "conflicting concurrent update")

	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = NewError(KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")

	// ErrCSRFTokenMissing occurs when the CSRF token is absent.
	ErrCSRFTokenMissing = NewError(KindForbidden, "CSRF_MISSING", "csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = NewError(KindForbidden, "CSRF_MISMATCH", "csrf token mismatch")
)

// KindOf extracts the kind from any error chain.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return KindInternal
}

// UserSafeMessage returns a message suitable for API clients. Internal
// failures are not echoed back.
func UserSafeMessage(err error) string {
	var typed *Error
	if errors.As(err, &typed) && typed.Kind != KindInternal {
		return typed.Message
	}
	return "internal error"
}
