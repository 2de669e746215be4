package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared across the pipeline and the query engine. Handlers map
// them onto HTTP statuses; everything else treats them as opaque labels.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeStorage      = "STORAGE_ERROR"
	CodeExtraction   = "EXTRACTION_ERROR"
	CodeEmptyContent = "EMPTY_CONTENT"
	CodeEmbedding    = "EMBEDDING_ERROR"
	CodePersistence  = "PERSISTENCE_ERROR"
	CodeRateLimited  = "RATE_LIMITED"
	CodeExternalAPI  = "EXTERNAL_API_ERROR"
	CodeCanceled     = "CANCELED"
	CodeInternal     = "INTERNAL_ERROR"
)

// Error is the error type surfaced by the service layer. Code is a stable
// machine-readable label, Message is safe to show to callers, and Err keeps
// the underlying cause for logs.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error with an optional cause.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Errf builds an Error with a formatted message and no cause.
func Errf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, defaulting to INTERNAL_ERROR for plain
// errors. Context cancellation and deadline expiry map to CANCELED wherever
// they surface.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps an error code to the response status handlers should use.
func HTTPStatus(code string) int {
	switch code {
	case CodeValidation, CodeEmptyContent:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeCanceled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}
