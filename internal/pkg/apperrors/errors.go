package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	// ErrAlreadyExists marks a create that collides with an existing id or username.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrConflict marks a write rejected because its revision token is stale.
	ErrConflict = errors.New("resource conflict")

	ErrUnauthenticated = errors.New("caller identity missing")

	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when an authenticated caller targets a record that is not its own.
	ErrUnauthorized = errors.New("unauthorized")

	ErrQueryFailure = errors.New("query failed")

	ErrStoreUnavailable = errors.New("document store unavailable")

	ErrInternalServer = errors.New("internal server error")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {

	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WrapStoreError tags an infrastructure failure so that it unwraps to both
// kind and cause.
func WrapStoreError(kind, cause error, message string) error {
	return &AppError{
		Code:    "STORE_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", kind, cause),
	}
}
