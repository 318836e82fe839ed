package http

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Middleware-specific errors
var (
	// ErrMissingToken indicates no bearer token was provided
	ErrMissingToken = errors.New("missing authentication token")

	// ErrInvalidTokenFormat indicates the Authorization header is not a bearer token
	ErrInvalidTokenFormat = errors.New("invalid token format")
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// defaultDenyHandler answers requests guarded by a malformed requirement.
func defaultDenyHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusForbidden, "access_denied", "Route is not configured for any role")
}

// defaultUnauthorizedHandler answers API requests without a principal.
func defaultUnauthorizedHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorCode,
		Message: message,
		Code:    status,
	})
}
