package rbac

import (
	"fmt"
	"log/slog"
	"sync"

	"portalguard"
	"portalguard/roles"
)

// Evaluator answers authorization questions for principals using a Registry.
// It never fails: anything it cannot resolve is denied.
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger

	// unknown role keys already warned about
	warned sync.Map
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the logger unknown roles are reported to.
func WithLogger(l *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator creates an evaluator over registry; nil means Default().
func NewEvaluator(registry *Registry, opts ...EvaluatorOption) *Evaluator {
	if registry == nil {
		registry = Default()
	}
	e := &Evaluator{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the underlying registry.
func (e *Evaluator) Registry() *Registry { return e.registry }

// CanAccess reports whether roleKey satisfies req. Empty or unregistered
// roles are denied for every requirement, as are empty requirements.
func (e *Evaluator) CanAccess(roleKey string, req portalguard.AccessRequirement) bool {
	if req.IsEmpty() {
		return false
	}
	if _, err := e.resolve(roleKey); err != nil {
		return false
	}
	return MatchesAny(roles.String(roleKey), req)
}

// CanPrincipalAccess is CanAccess for a principal; nil principals are denied.
func (e *Evaluator) CanPrincipalAccess(p *portalguard.Principal, req portalguard.AccessRequirement) bool {
	if p == nil {
		return false
	}
	return e.CanAccess(p.RoleKey, req)
}

// CanAccessPath checks p against the registry rule nearest to path.
func (e *Evaluator) CanAccessPath(p *portalguard.Principal, path string) bool {
	if p == nil {
		return false
	}
	key, err := e.resolve(p.RoleKey)
	if err != nil {
		return false
	}
	return e.registry.IsPathAllowed(path, key)
}

// DefaultRoute returns the landing route for p, honouring the org_admin
// organization override. Unresolvable principals land on "/".
func (e *Evaluator) DefaultRoute(p *portalguard.Principal) string {
	if p == nil {
		return rootPath
	}
	key, err := e.resolve(p.RoleKey)
	if err != nil {
		return rootPath
	}
	return e.registry.DefaultRouteFor(key, p.OrganizationID)
}

// Navigation returns the menu for p.
func (e *Evaluator) Navigation(p *portalguard.Principal) []portalguard.NavigationItem {
	if p == nil {
		return []portalguard.NavigationItem{}
	}
	key, err := e.resolve(p.RoleKey)
	if err != nil {
		return []portalguard.NavigationItem{}
	}
	return e.registry.NavigationFor(key)
}

// ResolveRole returns the registered key for p or ErrUnknownRole.
func (e *Evaluator) ResolveRole(p *portalguard.Principal) (string, error) {
	if p == nil {
		return "", portalguard.ErrNoSession
	}
	return e.resolve(p.RoleKey)
}

func (e *Evaluator) resolve(roleKey string) (string, error) {
	key := roles.NormalizeString(roleKey)
	if key == "" {
		return "", fmt.Errorf("%w: role is empty", portalguard.ErrUnknownRole)
	}
	if !e.registry.HasRole(key) {
		if _, seen := e.warned.LoadOrStore(key, struct{}{}); seen {
			e.logger.Debug("unknown role", "role_key", key)
		} else {
			e.logger.Warn("unknown role", "role_key", key)
		}
		return "", fmt.Errorf("%w: %s", portalguard.ErrUnknownRole, key)
	}
	return key, nil
}
