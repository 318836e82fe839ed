package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"portalguard"
)

const authorizationKey = "authorization"

// ExtractBearerToken extracts a Bearer token from incoming gRPC metadata.
// This is a standalone helper that can be used outside of interceptors.
func ExtractBearerToken(ctx context.Context) (string, error) {
	return extractBearer(ctx, authorizationKey)
}

func extractBearer(ctx context.Context, key string) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrMissingMetadata
	}
	values := md.Get(key)
	if len(values) == 0 {
		return "", ErrMissingToken
	}
	token, ok := portalguard.ParseBearer(values[0])
	if !ok {
		if strings.EqualFold(strings.TrimSpace(values[0]), "bearer") {
			return "", ErrMissingToken
		}
		return "", ErrInvalidTokenFormat
	}
	return token, nil
}

// ChainUnaryInterceptors chains multiple unary interceptors together.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentCtx context.Context, currentReq any) (any, error) {
				return interceptor(currentCtx, currentReq, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// ChainStreamInterceptors chains multiple stream interceptors together.
func ChainStreamInterceptors(interceptors ...grpc.StreamServerInterceptor) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(currentSrv any, currentSs grpc.ServerStream) error {
				return interceptor(currentSrv, currentSs, info, next)
			}
		}
		return chained(srv, ss)
	}
}

// WithRoles is a convenience function for requiring authentication + one of roleKeys.
func (i *Interceptor) WithRoles(roleKeys ...string) grpc.UnaryServerInterceptor {
	return ChainUnaryInterceptors(
		i.UnaryAuthInterceptor(),
		i.UnaryRoleInterceptor(roleKeys...),
	)
}

// WithStreamRoles is WithRoles for streams.
func (i *Interceptor) WithStreamRoles(roleKeys ...string) grpc.StreamServerInterceptor {
	return ChainStreamInterceptors(
		i.StreamAuthInterceptor(),
		i.StreamRoleInterceptor(roleKeys...),
	)
}
