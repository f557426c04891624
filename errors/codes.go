package errors

import "net/http"

// ErrorCode is the machine-readable code of an AppError.
type ErrorCode string

const (
	// ErrCodeRegistryUnavailable: the service registry could not be queried.
	ErrCodeRegistryUnavailable ErrorCode = "REGISTRY_UNAVAILABLE"
	// ErrCodeForwardFailed: the selected instance failed or answered non-2xx.
	ErrCodeForwardFailed ErrorCode = "FORWARD_FAILED"
	// ErrCodeTimeout: a lookup or forward exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInvalidInput: the inbound request cannot be dispatched.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal: anything else.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status    int
	retryable bool
}

var codes = map[ErrorCode]codeInfo{
	ErrCodeRegistryUnavailable: {http.StatusServiceUnavailable, true},
	ErrCodeForwardFailed:       {http.StatusBadGateway, true},
	ErrCodeTimeout:             {http.StatusGatewayTimeout, true},
	ErrCodeInvalidInput:        {http.StatusBadRequest, false},
	ErrCodeInternal:            {http.StatusInternalServerError, false},
}

// HTTPStatus returns the status the code maps to, 500 for unknown codes.
func (c ErrorCode) HTTPStatus() int {
	if info, ok := codes[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Retryable reports whether the same call may succeed later.
func (c ErrorCode) Retryable() bool {
	return codes[c].retryable
}
