package http

import (
	"net/http"
	"strings"

	"portalguard"
)

// ExtractBearerToken extracts a Bearer token from the Authorization header.
// This is a standalone helper that can be used outside of middleware.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	token, ok := portalguard.ParseBearer(header)
	if !ok {
		if strings.EqualFold(strings.TrimSpace(header), "bearer") {
			return "", ErrMissingToken
		}
		return "", ErrInvalidTokenFormat
	}
	return token, nil
}

// PrincipalFromRequest returns the principal a guard middleware attached.
func PrincipalFromRequest(r *http.Request) (*portalguard.Principal, bool) {
	return portalguard.PrincipalFromContext(r.Context())
}

// Chain combines multiple middleware functions into one.
func Chain(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
