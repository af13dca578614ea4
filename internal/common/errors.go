package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrCancelled    = errors.New("cancelled")

	// ErrNoOutputFolder is returned before any I/O when neither the profile nor the
	// session provides an output folder.
	ErrNoOutputFolder = errors.New("no output folder: set an output folder in the profile or for the session")
	// ErrNothingToExport marks the no-op state where no page carries a profile.
	ErrNothingToExport = errors.New("no pages have been assigned index profiles yet")
)

// Error codes carried by AppError.
const (
	CodeConfig     = "CONFIG_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeStorage    = "STORAGE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NotFoundErrorf(format string, args ...interface{}) error {
	return NewAppError(CodeNotFound, fmt.Sprintf(format, args...), ErrNotFound)
}

func ConflictErrorf(format string, args ...interface{}) error {
	return NewAppError(CodeConflict, fmt.Sprintf(format, args...), ErrConflict)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return NewAppError(CodeValidation, fmt.Sprintf(format, args...), ErrInvalidInput)
}
