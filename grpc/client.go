package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"portalguard"
)

// TokenSource supplies and renews the access token for outgoing calls.
// *session.Session implements it.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// UnaryClientInterceptor attaches the bearer token. A call rejected with
// Unauthenticated is retried once after a refresh; when the refresh fails
// the original error is returned.
func UnaryClientInterceptor(src TokenSource) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		token := src.AccessToken()
		if token == "" {
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		err := invoker(withToken(ctx, token), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}
		fresh, rerr := src.Refresh(ctx)
		if rerr != nil {
			return err
		}
		return invoker(withToken(ctx, fresh), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor attaches the bearer token to new streams.
// Streams are not retried.
func StreamClientInterceptor(src TokenSource) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		if token := src.AccessToken(); token != "" {
			ctx = withToken(ctx, token)
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

// DialOptions returns the options installing both client interceptors.
func DialOptions(src TokenSource) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithUnaryInterceptor(UnaryClientInterceptor(src)),
		grpc.WithStreamInterceptor(StreamClientInterceptor(src)),
	}
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationKey, portalguard.BearerHeader(token))
}
