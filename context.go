package portalguard

import "context"

// contextKey is an unexported type for keys defined in this package.
type contextKey string

const (
	principalContextKey   contextKey = "portalguard.principal"
	requirementContextKey contextKey = "portalguard.requirement"
)

// WithPrincipal adds a principal to the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext extracts the principal from the context.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	return p, ok && p != nil
}

// MustPrincipalFromContext extracts the principal from context or panics.
func MustPrincipalFromContext(ctx context.Context) *Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("no principal in context")
	}
	return p
}

// WithRequirement records the requirement a request was authorized against.
func WithRequirement(ctx context.Context, req AccessRequirement) context.Context {
	return context.WithValue(ctx, requirementContextKey, req)
}

// RequirementFromContext returns the requirement recorded by WithRequirement.
func RequirementFromContext(ctx context.Context) (AccessRequirement, bool) {
	req, ok := ctx.Value(requirementContextKey).(AccessRequirement)
	return req, ok
}

// RoleKeyFromContext returns the canonical role of the principal in ctx.
func RoleKeyFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.RoleKey == "" {
		return "", false
	}
	return p.RoleKey, true
}

// IsAuthenticated checks if there's a principal in the context.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := PrincipalFromContext(ctx)
	return ok
}
