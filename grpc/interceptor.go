// Package grpc carries portal sessions over gRPC: client interceptors that
// attach and renew the bearer token, and server interceptors that resolve
// the caller through the identity API and enforce role requirements.
package grpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"portalguard"
	"portalguard/rbac"
)

// Interceptor handles server-side authentication and role checks.
type Interceptor struct {
	api    portalguard.IdentityAPI
	eval   *rbac.Evaluator
	config Config
}

// Config holds interceptor configuration.
type Config struct {
	// MetadataKey is the metadata key for token extraction (default: "authorization")
	MetadataKey string

	// SkipMethods are full method names to skip authentication (e.g., ["/grpc.health.v1.Health/Check"])
	SkipMethods []string

	// ErrorHandler maps authentication errors to status errors
	ErrorHandler func(ctx context.Context, err error) error

	Logger *slog.Logger
}

// DefaultConfig returns a default interceptor configuration.
func DefaultConfig() Config {
	return Config{
		MetadataKey:  authorizationKey,
		SkipMethods:  []string{},
		ErrorHandler: defaultErrorHandler,
	}
}

// New creates a server interceptor resolving callers through api. A nil
// evaluator uses the default registry.
func New(api portalguard.IdentityAPI, eval *rbac.Evaluator, config ...Config) *Interceptor {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.MetadataKey == "" {
		cfg.MetadataKey = authorizationKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if eval == nil {
		eval = rbac.NewEvaluator(nil, rbac.WithLogger(cfg.Logger))
	}
	return &Interceptor{api: api, eval: eval, config: cfg}
}

// UnaryAuthInterceptor resolves the caller and adds the principal to the context.
func (i *Interceptor) UnaryAuthInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if i.shouldSkip(info.FullMethod) {
			return handler(ctx, req)
		}
		p, err := i.authenticate(ctx)
		if err != nil {
			return nil, i.config.ErrorHandler(ctx, err)
		}
		return handler(portalguard.WithPrincipal(ctx, p), req)
	}
}

// StreamAuthInterceptor is UnaryAuthInterceptor for streams.
func (i *Interceptor) StreamAuthInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if i.shouldSkip(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx := ss.Context()
		p, err := i.authenticate(ctx)
		if err != nil {
			return i.config.ErrorHandler(ctx, err)
		}
		return handler(srv, &contextStream{ServerStream: ss, ctx: portalguard.WithPrincipal(ctx, p)})
	}
}

// UnaryRoleInterceptor admits only principals holding one of roleKeys.
// Must be used after UnaryAuthInterceptor.
func (i *Interceptor) UnaryRoleInterceptor(roleKeys ...string) grpc.UnaryServerInterceptor {
	req := portalguard.Require(roleKeys...)
	return func(ctx context.Context, r any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := i.authorize(ctx, info.FullMethod, req); err != nil {
			return nil, err
		}
		return handler(portalguard.WithRequirement(ctx, req), r)
	}
}

// StreamRoleInterceptor is UnaryRoleInterceptor for streams.
func (i *Interceptor) StreamRoleInterceptor(roleKeys ...string) grpc.StreamServerInterceptor {
	req := portalguard.Require(roleKeys...)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := i.authorize(ss.Context(), info.FullMethod, req); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (i *Interceptor) authenticate(ctx context.Context) (*portalguard.Principal, error) {
	token, err := extractBearer(ctx, i.config.MetadataKey)
	if err != nil {
		return nil, err
	}
	user, err := i.api.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, portalguard.ErrTokenRejected
	}
	return portalguard.NewPrincipal(*user, token, ""), nil
}

func (i *Interceptor) authorize(ctx context.Context, method string, req portalguard.AccessRequirement) error {
	if i.shouldSkip(method) {
		return nil
	}
	p, ok := portalguard.PrincipalFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "no principal in context")
	}
	if !i.eval.CanPrincipalAccess(p, req) {
		i.config.Logger.Debug("call denied", "method", method, "role_key", p.RoleKey)
		return status.Error(codes.PermissionDenied, "insufficient role")
	}
	return nil
}

// shouldSkip checks if the method should skip authentication.
func (i *Interceptor) shouldSkip(fullMethod string) bool {
	for _, skipMethod := range i.config.SkipMethods {
		if fullMethod == skipMethod {
			return true
		}
	}
	return false
}
