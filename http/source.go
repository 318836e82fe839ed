package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"portalguard"
	"portalguard/session"
)

// PrincipalSource yields the principal a request acts as.
type PrincipalSource interface {
	Principal(r *http.Request) (*portalguard.Principal, bool)
}

// PrincipalSourceFunc adapts a function to PrincipalSource.
type PrincipalSourceFunc func(r *http.Request) (*portalguard.Principal, bool)

// Principal implements PrincipalSource.
func (f PrincipalSourceFunc) Principal(r *http.Request) (*portalguard.Principal, bool) {
	return f(r)
}

// SessionPrincipal serves every request as the principal of s. It suits
// single-user processes such as a local dashboard backend.
func SessionPrincipal(s *session.Session) PrincipalSource {
	return PrincipalSourceFunc(func(*http.Request) (*portalguard.Principal, bool) {
		return s.CurrentPrincipal()
	})
}

// BearerSource resolves bearer tokens through the identity API and caches
// the result for a short time.
type BearerSource struct {
	api    portalguard.IdentityAPI
	cache  *expirable.LRU[string, *portalguard.Principal]
	logger *slog.Logger
}

// BearerPrincipal creates a BearerSource. ttl bounds how long a revoked
// token keeps working; zero disables caching.
func BearerPrincipal(api portalguard.IdentityAPI, size int, ttl time.Duration, logger *slog.Logger) *BearerSource {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BearerSource{api: api, logger: logger}
	if ttl > 0 {
		if size <= 0 {
			size = 1024
		}
		b.cache = expirable.NewLRU[string, *portalguard.Principal](size, nil, ttl)
	}
	return b
}

// Principal implements PrincipalSource.
func (b *BearerSource) Principal(r *http.Request) (*portalguard.Principal, bool) {
	token, err := ExtractBearerToken(r)
	if err != nil {
		return nil, false
	}
	if b.cache != nil {
		if p, ok := b.cache.Get(token); ok {
			return p.Clone(), true
		}
	}

	user, err := b.api.CurrentUser(r.Context(), token)
	if err != nil || user == nil {
		b.logger.Debug("bearer token not accepted", "error", err)
		return nil, false
	}
	p := portalguard.NewPrincipal(*user, token, "")
	if b.cache != nil {
		b.cache.Add(token, p)
	}
	return p.Clone(), true
}

// Forget drops token from the cache, e.g. after a logout.
func (b *BearerSource) Forget(token string) {
	if b.cache != nil {
		b.cache.Remove(token)
	}
}
