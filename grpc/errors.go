package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"portalguard"
)

// gRPC interceptor-specific errors
var (
	// ErrMissingMetadata indicates no metadata was found in the context
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrMissingToken indicates no authentication token was provided
	ErrMissingToken = errors.New("missing authentication token")

	// ErrInvalidTokenFormat indicates the token format is invalid
	ErrInvalidTokenFormat = errors.New("invalid token format")
)

// defaultErrorHandler maps authentication failures to status errors.
func defaultErrorHandler(_ context.Context, err error) error {
	switch {
	case errors.Is(err, ErrMissingMetadata), errors.Is(err, ErrMissingToken):
		return status.Error(codes.Unauthenticated, "missing authentication token")
	case errors.Is(err, ErrInvalidTokenFormat):
		return status.Error(codes.Unauthenticated, "invalid token format")
	case errors.Is(err, portalguard.ErrNetwork):
		return status.Error(codes.Unavailable, "identity service unavailable")
	default:
		return status.Error(codes.Unauthenticated, "authentication failed")
	}
}
