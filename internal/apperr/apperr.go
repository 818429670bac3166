// Package apperr defines the failure kinds shared by the store, storage and
// auth layers. Callers wrap a kind with detail using fmt.Errorf("%w: ...") and
// the HTTP boundary maps the kind to a status code with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// Error carries a kind plus the message shown to clients.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns an ErrValidation with a client-facing message.
func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

// NotFound returns an ErrNotFound with a client-facing message.
func NotFound(format string, args ...any) error { return newf(ErrNotFound, format, args...) }

// AccessDenied returns an ErrAccessDenied with a client-facing message.
func AccessDenied(format string, args ...any) error { return newf(ErrAccessDenied, format, args...) }

// Unauthorized returns an ErrUnauthorized with a client-facing message.
func Unauthorized(format string, args ...any) error { return newf(ErrUnauthorized, format, args...) }

// Forbidden returns an ErrForbidden with a client-facing message.
func Forbidden(format string, args ...any) error { return newf(ErrForbidden, format, args...) }

// Conflict returns an ErrConflict with a client-facing message.
func Conflict(format string, args ...any) error { return newf(ErrConflict, format, args...) }

// Status maps an error to the HTTP status for its kind. Unknown errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
