// Package apperr defines the error taxonomy shared by the ledger core and the
// HTTP adapter. Every failure carries a stable kind, a machine-readable code and
// a short human-readable message.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for callers and transports.
type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindDuplicateIdentity   Kind = "duplicate_identity"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindCooldown            Kind = "cooldown"
	KindRateLimited         Kind = "rate_limited"
	KindInternal            Kind = "internal"
)

// Bearer token failures shared by token verification and the HTTP middleware.
var (
	ErrMissingToken = New(KindUnauthenticated, "missing_token", "Access token required")
	ErrInvalidToken = New(KindForbidden, "invalid_token", "Invalid or expired token")
)

// Error is a typed domain failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New builds a domain error. Package-level sentinels are created with New and
// compared with errors.Is.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Internal wraps an unexpected fault. The wrapped error is kept for logging but
// never rendered to clients.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err, defaulting to KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// From returns the domain error carried by err, or an Internal wrapper.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// HTTPStatus maps a kind onto the status code used by the HTTP adapter.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInsufficientBalance, KindDuplicateIdentity, KindInvalidCredentials:
		return http.StatusBadRequest
	case KindCooldown, KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
