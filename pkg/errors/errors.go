package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeValidation indicates a client-detected problem; such errors never reach the network
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeUnauthorized indicates the caller's role may not perform the action (401/403)
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeConflict indicates a double-booked slot or a concurrent action
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeServer indicates any other upstream failure, including transport errors
	ErrorTypeServer ErrorType = "SERVER"

	// ErrorTypeInternal indicates a local failure unrelated to the upstream
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// GenericServerMessage is used when neither the upstream nor the transport supplied one.
const GenericServerMessage = "something went wrong, please try again"

// AppError represents an application error
type AppError struct {
	Type       ErrorType
	Message    string
	Fields     []string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewMissingFieldsError creates a validation error naming every missing field
func NewMissingFieldsError(fields []string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: 404,
	}
}

// NewUnauthorizedError creates an authorization error for the attempted action
func NewUnauthorizedError(action, detail string) *AppError {
	msg := fmt.Sprintf("not allowed to %s", action)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: msg,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		StatusCode: 409,
	}
}

// NewServerError creates an upstream failure. The message falls back to the
// transport error text and then to a generic message.
func NewServerError(message string, statusCode int, err error) *AppError {
	if strings.TrimSpace(message) == "" && err != nil {
		message = err.Error()
	}
	if strings.TrimSpace(message) == "" {
		message = GenericServerMessage
	}
	return &AppError{
		Type:       ErrorTypeServer,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// As returns the AppError in err's chain, if any
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
