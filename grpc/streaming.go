package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"portalguard"
)

// contextStream wraps grpc.ServerStream to provide a custom context.
type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the custom context.
func (s *contextStream) Context() context.Context {
	return s.ctx
}

// StreamingAuthConfig configures revalidation of long-lived streams.
type StreamingAuthConfig struct {
	// ReauthInterval is how often the caller's token and role are re-checked (default: 5 minutes)
	ReauthInterval time.Duration

	// OnAuthFailure is called before the stream context is cancelled
	OnAuthFailure func(ctx context.Context, err error)
}

// DefaultStreamingAuthConfig returns default streaming auth configuration.
func DefaultStreamingAuthConfig() StreamingAuthConfig {
	return StreamingAuthConfig{ReauthInterval: 5 * time.Minute}
}

// StreamingAuthWrapper cancels a stream once its caller's token is no longer
// accepted or the caller no longer holds one of roleKeys. The stream must
// already carry a principal from StreamAuthInterceptor.
func (i *Interceptor) StreamingAuthWrapper(config StreamingAuthConfig, roleKeys ...string) func(grpc.StreamHandler) grpc.StreamHandler {
	if config.ReauthInterval <= 0 {
		config.ReauthInterval = DefaultStreamingAuthConfig().ReauthInterval
	}
	req := portalguard.Require(roleKeys...)

	return func(handler grpc.StreamHandler) grpc.StreamHandler {
		return func(srv any, stream grpc.ServerStream) error {
			ctx := stream.Context()
			p, ok := portalguard.PrincipalFromContext(ctx)
			if !ok {
				return status.Error(codes.Unauthenticated, "no principal in context")
			}

			streamCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go i.periodicAuthCheck(streamCtx, p.AccessToken, req, config, cancel)

			return handler(srv, &contextStream{ServerStream: stream, ctx: streamCtx})
		}
	}
}

func (i *Interceptor) periodicAuthCheck(ctx context.Context, token string, req portalguard.AccessRequirement, config StreamingAuthConfig, cancel context.CancelFunc) {
	ticker := time.NewTicker(config.ReauthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := i.recheck(ctx, token, req)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			i.config.Logger.Warn("stream revalidation failed", "error", err)
			if config.OnAuthFailure != nil {
				config.OnAuthFailure(ctx, err)
			}
			cancel()
			return
		}
	}
}

func (i *Interceptor) recheck(ctx context.Context, token string, req portalguard.AccessRequirement) error {
	user, err := i.api.CurrentUser(ctx, token)
	if err != nil {
		return err
	}
	if user == nil {
		return portalguard.ErrTokenRejected
	}
	if req.IsEmpty() {
		return nil
	}
	if !i.eval.CanPrincipalAccess(portalguard.NewPrincipal(*user, token, ""), req) {
		return status.Error(codes.PermissionDenied, "insufficient role")
	}
	return nil
}
