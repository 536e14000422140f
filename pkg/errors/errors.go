package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
	Status  int      `json:"status"`
	Err     error    `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Messages returns the user facing message list for the error.
func (e *Error) Messages() []string {
	if e == nil {
		return nil
	}
	if len(e.Details) > 0 {
		out := make([]string, len(e.Details))
		copy(out, e.Details)
		return out
	}
	return []string{e.Message}
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "access denied")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidFile        = New("INVALID_FILE", http.StatusBadRequest, "invalid file")
	ErrDuplicateFileName  = New("DUPLICATE_FILE_NAME", http.StatusConflict, "a document with this file name already exists")
	ErrEntityNotFound     = New("ENTITY_NOT_FOUND", http.StatusNotFound, "entity not found")
	ErrBulkLimitExceeded  = New("BULK_LIMIT_EXCEEDED", http.StatusBadRequest, "bulk operation exceeds the allowed batch size")
	ErrStorageFailure     = New("STORAGE_FAILURE", http.StatusInternalServerError, "file storage failure")
	ErrPersistenceFailure = New("PERSISTENCE_FAILURE", http.StatusInternalServerError, "database failure")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	clone.Details = nil
	return &clone
}

// WithDetails clones err and attaches a list of human readable messages.
func WithDetails(err *Error, details ...string) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if len(details) > 0 {
		clone.Details = append([]string(nil), details...)
	}
	return clone
}

// Cause clones template and wraps err beneath it.
func Cause(err error, template *Error, message string) *Error {
	clone := Clone(template, message)
	if clone == nil {
		return nil
	}
	clone.Err = err
	return clone
}

// HasCode reports whether err is a typed Error carrying the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
