// Package huberrors provides sentinel and custom error types for the application.
package huberrors

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrConflict is the sentinel for conflict errors (e.g. a second active job of the
// same kind, or an object-store upload hitting an existing path).
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for resource conflicts.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}

// ErrAlreadyTerminal is the sentinel for transitions attempted on a job that has
// already reached a terminal status (completed, failed, cancelled).
// Duplicate completion signals treat this as a no-op, not a failure.
var ErrAlreadyTerminal = &AlreadyTerminalError{}

// AlreadyTerminalError is a sentinel error for transitions on terminal jobs.
type AlreadyTerminalError struct {
	Status  string
	Message string
}

// NewAlreadyTerminalError creates an AlreadyTerminalError recording the current status.
func NewAlreadyTerminalError(status, message string) *AlreadyTerminalError {
	return &AlreadyTerminalError{Status: status, Message: message}
}

// Error implements the error interface.
func (e *AlreadyTerminalError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Status != "" {
		return "job already in terminal status: " + e.Status
	}

	return "job already in terminal status"
}

// Is implements the error interface for error comparison.
func (e *AlreadyTerminalError) Is(target error) bool {
	_, ok := target.(*AlreadyTerminalError)

	return ok
}
