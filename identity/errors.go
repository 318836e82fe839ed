package identity

import (
	"errors"
	"fmt"
	"net/http"

	"portalguard"
)

// ErrInvalidResponse indicates the identity API answered with a status or
// body the client does not understand.
var ErrInvalidResponse = errors.New("invalid identity response")

// APIError wraps a failed identity API call with its status and the
// server's message. Err is one of the portalguard sentinels or
// ErrInvalidResponse.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity %s failed (%d): %s: %v", e.Operation, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("identity %s failed (%d): %v", e.Operation, e.StatusCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAPIError checks if an error is an APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// statusError maps a non-2xx status to the error callers branch on.
func statusError(op string, status int) error {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500 {
		return portalguard.ErrNetwork
	}
	rejected := status == http.StatusUnauthorized || status == http.StatusForbidden
	switch op {
	case opLogin:
		if rejected || status == http.StatusBadRequest {
			return portalguard.ErrInvalidCredentials
		}
	case opRefresh:
		if rejected || status == http.StatusBadRequest {
			return portalguard.ErrRefreshFailed
		}
	case opMe, opLogout:
		if rejected {
			return portalguard.ErrTokenRejected
		}
	}
	return ErrInvalidResponse
}

// classifyError normalizes errors for metrics and span status.
func classifyError(err error) string {
	switch {
	case errors.Is(err, portalguard.ErrNetwork):
		return "network"
	case errors.Is(err, portalguard.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, portalguard.ErrRefreshFailed):
		return "refresh_failed"
	case errors.Is(err, portalguard.ErrTokenRejected):
		return "token_rejected"
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	default:
		return "unknown"
	}
}
