package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a codyarch error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrNoWorkspace    ErrorCode = "NO_WORKSPACE"    // 412
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrMeasureFailed  ErrorCode = "MEASURE_FAILED"  // 500
	ErrFilesystem     ErrorCode = "FILESYSTEM"      // 500
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrEmptyResult    ErrorCode = "EMPTY_RESULT"    // 502
	ErrFetchFailed    ErrorCode = "FETCH_FAILED"    // 502
)

// ArchError represents a structured error with code, status, and details.
type ArchError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *ArchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ArchError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ArchError {
	return &ArchError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when an indexed result cannot be found.
func NewNotFound(identifier string) *ArchError {
	return &ArchError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("result not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing file on disk.
func NewFileNotFound(path string) *ArchError {
	return &ArchError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoWorkspace creates a 412 error when no workspace root could be resolved.
func NewNoWorkspace(startDir string) *ArchError {
	return &ArchError{
		Code:    ErrNoWorkspace,
		Status:  412,
		Message: fmt.Sprintf("no workspace found from %s", startDir),
		Details: map[string]any{"start_dir": startDir},
	}
}

// NewCancelled creates a 499 error for an operation abandoned by its caller.
func NewCancelled(operation string) *ArchError {
	return &ArchError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewMeasureFailed creates a 500 error for a failed size measurement.
func NewMeasureFailed(metric string, err error) *ArchError {
	msg := "measurement failed"
	if err != nil {
		msg = fmt.Sprintf("measurement failed: %v", err)
	}
	return &ArchError{
		Code:    ErrMeasureFailed,
		Status:  500,
		Message: msg,
		Details: map[string]any{"metric": metric},
		cause:   err,
	}
}

// NewFilesystem creates a 500 error for a failed directory or file operation.
func NewFilesystem(op, path string, err error) *ArchError {
	return &ArchError{
		Code:    ErrFilesystem,
		Status:  500,
		Message: fmt.Sprintf("%s %s: %v", op, path, err),
		Details: map[string]any{"op": op, "path": path},
		cause:   err,
	}
}

// NewEmptyResult creates a 502 error when the remote service returned no content.
func NewEmptyResult(target string) *ArchError {
	return &ArchError{
		Code:    ErrEmptyResult,
		Status:  502,
		Message: fmt.Sprintf("empty result for %s", target),
		Details: map[string]any{"target": target},
	}
}

// NewFetchFailed creates a 502 error for a failed remote fetch.
// status is the HTTP status code, or 0 for transport errors.
func NewFetchFailed(target string, status int, err error) *ArchError {
	msg := fmt.Sprintf("fetch %s failed", target)
	switch {
	case err != nil:
		msg = fmt.Sprintf("fetch %s failed: %v", target, err)
	case status != 0:
		msg = fmt.Sprintf("fetch %s failed: HTTP %d", target, status)
	}
	return &ArchError{
		Code:    ErrFetchFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"target": target, "http_status": status},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ArchError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ArchError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is an ArchError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *ArchError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// As extracts the ArchError from err, if present.
func As(err error) (*ArchError, bool) {
	var aErr *ArchError
	if stderrors.As(err, &aErr) {
		return aErr, true
	}
	return nil, false
}
