package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that carry the HTTP status they were mapped from.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input, caught before any network call
	// or reported by the server as a 400
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

// Is lets errors.Is match the typed errors against their sentinels
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("version conflict")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrParse        = errors.New("response could not be parsed")

	// ErrNotConfirmed is returned when a destructive action was not confirmed.
	// No request is issued.
	ErrNotConfirmed = errors.New("action not confirmed")

	// ErrStreamClosed is returned when a stream channel ends without a terminal event
	ErrStreamClosed = errors.New("stream closed unexpectedly")
)

// ConflictError represents a stale-write rejection: the base version the client
// sent no longer matches the server's current version.
type ConflictError struct {
	Message      string // Human-readable error message (verbatim from the server when available)
	ResourceType string // chapter, outline, plot
	ResourceID   string
	BaseVersion  int // Version the client based its write on (0 if unknown)
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ParseError indicates a response body that could not be decoded.
// It is distinct from HTTP-status errors.
type ParseError struct {
	Op  string // e.g. "decode chapter"
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrParse.Error())
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// TransportError is a non-2xx response that does not map to a more specific
// domain error (5xx, unexpected 4xx).
type TransportError struct {
	Status int
	Detail string
}

func (e *TransportError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

func (e *TransportError) StatusCode() int { return e.Status }

// UserMessage returns the human-readable message shown for an error.
// Every failure class has its own wording.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		conflictErr  *ConflictError
		validErr     *ValidationError
		transportErr *TransportError
	)

	switch {
	case errors.As(err, &conflictErr):
		return "This chapter was changed elsewhere: " + conflictErr.Message + ". Reload or overwrite to continue."
	case errors.As(err, &validErr):
		return validErr.Message
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrNotConfirmed):
		return "Action cancelled."
	case errors.Is(err, ErrParse):
		return "The server response could not be parsed."
	case errors.Is(err, ErrNotFound):
		return "The requested item no longer exists."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please sign in again."
	case errors.Is(err, ErrForbidden):
		return "You do not have permission to change this."
	case errors.Is(err, ErrStreamClosed):
		return "The generation stream ended unexpectedly."
	case errors.As(err, &transportErr):
		return "The server could not complete the request (" + http.StatusText(transportErr.Status) + ")."
	default:
		return "Network error: " + err.Error()
	}
}
