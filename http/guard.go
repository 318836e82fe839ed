// Package http is the route-guard integration point: a decision function
// over the access evaluator, net/http middleware built on it, and a
// RoundTripper that keeps outgoing calls authenticated.
package http

import (
	"portalguard"
	"portalguard/rbac"
)

// Decision is the outcome of a route guard check.
type Decision int

const (
	// Allow lets the navigation proceed.
	Allow Decision = iota
	// Deny blocks a route whose requirement names no roles.
	Deny
	// RedirectToLogin is returned when there is no principal.
	RedirectToLogin
	// RedirectToUnauthorized is returned when the principal lacks the role.
	RedirectToUnauthorized
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToUnauthorized:
		return "redirect_to_unauthorized"
	default:
		return "unknown"
	}
}

// Guard turns evaluator answers into navigation decisions.
type Guard struct {
	eval *rbac.Evaluator
}

// NewGuard creates a guard; a nil evaluator uses the default registry.
func NewGuard(eval *rbac.Evaluator) *Guard {
	if eval == nil {
		eval = rbac.NewEvaluator(nil)
	}
	return &Guard{eval: eval}
}

// Evaluator returns the evaluator behind the guard.
func (g *Guard) Evaluator() *rbac.Evaluator { return g.eval }

// Check decides whether p may open a route guarded by req.
func (g *Guard) Check(p *portalguard.Principal, req portalguard.AccessRequirement) Decision {
	switch {
	case req.IsEmpty():
		return Deny
	case p == nil:
		return RedirectToLogin
	case g.eval.CanPrincipalAccess(p, req):
		return Allow
	default:
		return RedirectToUnauthorized
	}
}

// CheckPath decides using the registry rule covering path.
func (g *Guard) CheckPath(p *portalguard.Principal, path string) Decision {
	if p == nil {
		return RedirectToLogin
	}
	if g.eval.CanAccessPath(p, path) {
		return Allow
	}
	return RedirectToUnauthorized
}
