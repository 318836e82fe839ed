package session

import "portalguard"

// State is the lifecycle position of a Session.
type State int

const (
	// Unresolved means Restore has not run yet.
	Unresolved State = iota
	// Restoring means a cached principal is exposed while it is revalidated.
	Restoring
	// Authenticated means the principal was confirmed by login, revalidation or refresh.
	Authenticated
	// Unauthenticated means there is no session.
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// HasPrincipal reports whether a principal is exposed in this state.
func (s State) HasPrincipal() bool {
	return s == Restoring || s == Authenticated
}

// Snapshot is what observers receive on every transition.
type Snapshot struct {
	State     State
	Principal *portalguard.Principal
	// Degraded is set when revalidation failed but a refresh kept the
	// session alive with the cached profile.
	Degraded bool
}
