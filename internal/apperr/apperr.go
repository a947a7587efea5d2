// Package apperr defines the application error taxonomy and the JSON envelope
// every handler responds with.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes surfaced in the envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidStatus    = "INVALID_STATUS_TRANSITION"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeUpstream         = "UPSTREAM_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeImportFailed     = "IMPORT_FAILED"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// AppError is an error with an HTTP status and a machine readable code.
type AppError struct {
	Status  int               `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail returns a copy of e with an extra detail entry.
func (e *AppError) WithDetail(field, msg string) *AppError {
	out := *e
	out.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[field] = msg
	return &out
}

func newError(status int, code, format string, args ...any) *AppError {
	return &AppError{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *AppError {
	return newError(http.StatusBadRequest, CodeValidation, format, args...)
}

// ValidationFields builds a validation error from per-field messages.
func ValidationFields(details map[string]string) *AppError {
	e := Validation("validation failed")
	e.Details = details
	return e
}

func NotFound(entity, id string) *AppError {
	return newError(http.StatusNotFound, CodeNotFound, "%s %q not found", entity, id)
}

func Conflict(format string, args ...any) *AppError {
	return newError(http.StatusConflict, CodeConflict, format, args...)
}

// InvalidTransition reports a status-guarded action attempted from the wrong status.
func InvalidTransition(entity, action, current string, expected ...string) *AppError {
	e := newError(http.StatusConflict, CodeInvalidStatus,
		"cannot %s %s in status %q", action, entity, current)
	e.Details = map[string]string{"current_status": current}
	if len(expected) > 0 {
		e.Details["expected_status"] = strings.Join(expected, "|")
	}
	return e
}

func Unauthorized(format string, args ...any) *AppError {
	return newError(http.StatusUnauthorized, CodeUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *AppError {
	return newError(http.StatusForbidden, CodeForbidden, format, args...)
}

// Upstream wraps a failure reported by the external CRUD service.
func Upstream(err error, format string, args ...any) *AppError {
	e := newError(http.StatusBadGateway, CodeUpstream, format, args...)
	e.Err = err
	return e
}

func Internal(err error, format string, args ...any) *AppError {
	e := newError(http.StatusInternalServerError, CodeInternal, format, args...)
	e.Err = err
	return e
}

// From converts any error into an AppError. Unknown errors become internal errors.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err, "internal server error")
}

// StatusOf returns the HTTP status code err maps to.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}

func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

func IsConflict(err error) bool {
	return hasCode(err, CodeConflict) || hasCode(err, CodeInvalidStatus)
}

func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

func hasCode(err error, code string) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == code
}
