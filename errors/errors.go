package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an error ready to be written to an HTTP client.
type AppError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Retryable  bool           `json:"retryable"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the cause and returns e.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets one detail and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an AppError whose status and retryability follow code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: code.HTTPStatus(),
		Retryable:  code.Retryable(),
	}
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// RegistryUnavailable reports a failed lookup of service. It is distinct
// from an empty lookup, which is not an error.
func RegistryUnavailable(service string, cause error) *AppError {
	return New(ErrCodeRegistryUnavailable,
		fmt.Sprintf("Unable to look up %s in the service registry. Please try again.", service)).
		WithDetail("service", service).
		WithCause(cause)
}

// ForwardFailed reports a failed call to an instance of service. target is
// omitted from the details when empty.
func ForwardFailed(service, target string, cause error) *AppError {
	e := New(ErrCodeForwardFailed,
		fmt.Sprintf("The %s service did not answer successfully. Please try again.", service)).
		WithDetail("service", service).
		WithCause(cause)
	if target != "" {
		e.WithDetail("target", target)
	}
	return e
}

// Timeout reports that operation ran out of time.
func Timeout(operation string) *AppError {
	return New(ErrCodeTimeout, "The request took too long. Please try again.").
		WithDetail("operation", operation)
}

// InvalidInput reports a request that cannot be dispatched.
func InvalidInput(field, reason string) *AppError {
	e := New(ErrCodeInvalidInput, "Invalid input: "+reason)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// Internal hides cause behind a generic message.
func Internal(cause error) *AppError {
	return New(ErrCodeInternal, "An unexpected error occurred. Please try again or contact support.").
		WithCause(cause)
}
