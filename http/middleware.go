package http

import (
	"log/slog"
	"net/http"
	"net/url"

	"portalguard"
	"portalguard/rbac"
)

// Middleware guards HTTP routes with role requirements.
type Middleware struct {
	guard  *Guard
	source PrincipalSource
	config Config
	logger *slog.Logger
}

// Config holds middleware configuration.
type Config struct {
	// LoginPath is where requests without a principal are sent (default: "/login")
	LoginPath string

	// UnauthorizedPath is where principals lacking the role are sent (default: "/unauthorized")
	UnauthorizedPath string

	// RedirectParam carries the originally requested URI on the login redirect (default: "next")
	RedirectParam string

	// SkipPaths are paths never guarded (e.g., ["/health"])
	SkipPaths []string

	// LoginHandler replaces the login redirect, e.g. with a 401 for APIs
	LoginHandler func(w http.ResponseWriter, r *http.Request)

	// UnauthorizedHandler replaces the unauthorized redirect
	UnauthorizedHandler func(w http.ResponseWriter, r *http.Request)

	// DenyHandler handles routes guarded by an empty requirement
	DenyHandler func(w http.ResponseWriter, r *http.Request)

	Logger *slog.Logger
}

// DefaultConfig returns a default middleware configuration.
func DefaultConfig() Config {
	return Config{
		LoginPath:        "/login",
		UnauthorizedPath: "/unauthorized",
		RedirectParam:    "next",
		SkipPaths:        []string{"/login", "/unauthorized"},
		DenyHandler:      defaultDenyHandler,
	}
}

// APIConfig answers with JSON errors instead of redirects.
func APIConfig() Config {
	cfg := DefaultConfig()
	cfg.LoginHandler = defaultUnauthorizedHandler
	cfg.UnauthorizedHandler = func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient role")
	}
	return cfg
}

// New creates a new middleware instance over eval and source.
func New(eval *rbac.Evaluator, source PrincipalSource, config ...Config) *Middleware {
	cfg := DefaultConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.UnauthorizedPath == "" {
		cfg.UnauthorizedPath = "/unauthorized"
	}
	if cfg.DenyHandler == nil {
		cfg.DenyHandler = defaultDenyHandler
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Middleware{
		guard:  NewGuard(eval),
		source: source,
		config: cfg,
		logger: logger,
	}
}

// Guard returns the decision function the middleware uses.
func (m *Middleware) Guard() *Guard { return m.guard }

// RequireRoles returns middleware admitting only the listed roles.
func (m *Middleware) RequireRoles(roleKeys ...string) func(http.Handler) http.Handler {
	req := portalguard.Require(roleKeys...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.shouldSkip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			p, _ := m.source.Principal(r)
			m.dispatch(w, r, next, m.guard.Check(p, req), p, req)
		})
	}
}

// RequireRegisteredPath guards each request with the registry rule that
// covers its path.
func (m *Middleware) RequireRegisteredPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		p, _ := m.source.Principal(r)
		req, _ := m.guard.Evaluator().Registry().RequirementFor(r.URL.Path)
		m.dispatch(w, r, next, m.guard.CheckPath(p, r.URL.Path), p, req)
	})
}

// Authenticate attaches the principal when there is one and never blocks.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := m.source.Principal(r); ok {
			r = r.WithContext(portalguard.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) dispatch(w http.ResponseWriter, r *http.Request, next http.Handler, d Decision, p *portalguard.Principal, req portalguard.AccessRequirement) {
	switch d {
	case Allow:
		ctx := portalguard.WithPrincipal(r.Context(), p)
		ctx = portalguard.WithRequirement(ctx, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	case RedirectToLogin:
		if m.config.LoginHandler != nil {
			m.config.LoginHandler(w, r)
			return
		}
		http.Redirect(w, r, m.loginURL(r), http.StatusFound)
	case RedirectToUnauthorized:
		m.logger.Debug("route denied", "path", r.URL.Path, "role_key", p.RoleKey)
		if m.config.UnauthorizedHandler != nil {
			m.config.UnauthorizedHandler(w, r)
			return
		}
		http.Redirect(w, r, m.config.UnauthorizedPath, http.StatusFound)
	default:
		m.logger.Warn("route has no allowed roles", "path", r.URL.Path)
		m.config.DenyHandler(w, r)
	}
}

func (m *Middleware) loginURL(r *http.Request) string {
	if m.config.RedirectParam == "" {
		return m.config.LoginPath
	}
	q := url.Values{}
	q.Set(m.config.RedirectParam, r.URL.RequestURI())
	return m.config.LoginPath + "?" + q.Encode()
}

// shouldSkip checks if the path should skip the guard.
func (m *Middleware) shouldSkip(path string) bool {
	for _, skipPath := range m.config.SkipPaths {
		if path == skipPath {
			return true
		}
	}
	return false
}
