package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a timeofme error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrNoBackups      ErrorCode = "NO_BACKUPS"      // 404
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrCacheCorrupt   ErrorCode = "CACHE_CORRUPT"   // 500
	ErrListingFailed  ErrorCode = "LISTING_FAILED"  // 502
	ErrFetchFailed    ErrorCode = "FETCH_FAILED"    // 502
)

// TimeError represents a structured error with code, status, and details.
type TimeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *TimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TimeError {
	return &TimeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a backup file that is not in the listing.
func NewNotFound(name string) *TimeError {
	return &TimeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("backup not found: %s", name),
		Details: map[string]any{"name": name},
	}
}

// NewNoBackups creates a 404 error for an empty backup listing.
func NewNoBackups() *TimeError {
	return &TimeError{
		Code:    ErrNoBackups,
		Status:  404,
		Message: "No backup files found.",
	}
}

// NewCancelled creates an error for an operation aborted by its context.
func NewCancelled(op string) *TimeError {
	return &TimeError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewCacheCorrupt creates a 500 error for cache rows that cannot be decoded.
func NewCacheCorrupt(err error) *TimeError {
	return &TimeError{
		Code:    ErrCacheCorrupt,
		Status:  500,
		Message: fmt.Sprintf("cache is corrupt: %v", err),
	}
}

// NewListingFailed creates a 502 error when the remote backup listing cannot be loaded.
func NewListingFailed(reason string) *TimeError {
	return &TimeError{
		Code:    ErrListingFailed,
		Status:  502,
		Message: fmt.Sprintf("Couldn't load backup list: %s", reason),
	}
}

// NewFetchFailed creates a 502 error when a backup file cannot be downloaded.
func NewFetchFailed(name, reason string) *TimeError {
	return &TimeError{
		Code:    ErrFetchFailed,
		Status:  502,
		Message: fmt.Sprintf("Failed to fetch backup: %s", name),
		Details: map[string]any{"name": name, "reason": reason},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TimeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TimeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a TimeError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TimeError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// As returns the TimeError in err's chain, wrapping anything else as INTERNAL.
func As(err error) *TimeError {
	var tErr *TimeError
	if stderrors.As(err, &tErr) {
		return tErr
	}
	return NewInternal(err)
}
