package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
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
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrReviewerQuota      = New("REVIEWER_QUOTA", http.StatusConflict, "assignment reviewer quota reached")
	ErrDuplicateReviewer  = New("DUPLICATE_REVIEWER", http.StatusConflict, "reviewer already has a review for this submission")
	ErrCriteriaIncomplete = New("CRITERIA_INCOMPLETE", http.StatusPreconditionFailed, "all criteria must be graded before marking ready")
	ErrNotManuallyGraded  = New("NOT_MANUALLY_GRADED", http.StatusConflict, "assignment is auto-graded only")
	ErrStaleContext       = New("STALE_CONTEXT", http.StatusConflict, "response arrived for a context that is no longer active")
	ErrRemote             = New("REMOTE_FAILURE", http.StatusBadGateway, "upstream request failed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
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

// Remote builds a RemoteFailure carrying the upstream error string verbatim,
// so the message can be surfaced to the user unchanged.
func Remote(code int, message string) *Error {
	if message == "" {
		message = ErrRemote.Message
	}
	return &Error{Code: ErrRemote.Code, Status: http.StatusBadGateway, Message: message, Err: fmt.Errorf("upstream status code %d", code)}
}

// HasCode reports whether err carries the same code as the target sentinel.
func HasCode(err error, target *Error) bool {
	e := FromError(err)
	return e != nil && target != nil && e.Code == target.Code
}
