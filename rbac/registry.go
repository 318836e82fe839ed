// Package rbac holds the role registry and the access evaluator built on it.
package rbac

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"portalguard"
	"portalguard/roles"
)

const (
	rootPath        = "/"
	defaultMemoSize = 512
)

// Registry maps canonical role keys to default routes, navigation and the
// guarded-path rules they are listed in.
type Registry struct {
	mu       sync.RWMutex
	roles    map[string]RoleEntry
	rules    map[string]portalguard.AccessRequirement
	profile  portalguard.NavigationItem
	orgRoute string
	open     bool

	// memo: cleaned path -> nearest rule
	memo *lru.Cache[string, ruleMatch]
}

type ruleMatch struct {
	path string
	req  portalguard.AccessRequirement
	ok   bool
}

// Options defines registry configuration.
type Options struct {
	MemoSize int // default: 512
}

// NewRegistry validates def and builds a registry from it.
func NewRegistry(def Definition, opts ...Options) (*Registry, error) {
	var cfg Options
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.MemoSize <= 0 {
		cfg.MemoSize = defaultMemoSize
	}

	memo, err := lru.New[string, ruleMatch](cfg.MemoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule memo: %w", err)
	}

	r := &Registry{
		roles:    make(map[string]RoleEntry, len(def.Roles)),
		rules:    make(map[string]portalguard.AccessRequirement, len(def.Rules)),
		profile:  def.Profile,
		orgRoute: def.OrganizationRoute,
		open:     def.OpenByDefault,
		memo:     memo,
	}
	if r.orgRoute == "" {
		r.orgRoute = DefaultOrganizationRoute
	}

	for name, entry := range def.Roles {
		key := roles.NormalizeString(name)
		if key == "" {
			return nil, fmt.Errorf("role %q normalizes to an empty key", name)
		}
		if _, dup := r.roles[key]; dup {
			return nil, fmt.Errorf("role %q is defined twice", key)
		}
		if entry.DefaultRoute == "" {
			entry.DefaultRoute = rootPath
		}
		entry.Navigation = append([]portalguard.NavigationItem(nil), entry.Navigation...)
		r.roles[key] = entry
	}

	for _, rule := range def.Rules {
		if err := r.setRule(rule.Path, rule.Roles); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on an invalid definition.
func MustRegistry(def Definition, opts ...Options) *Registry {
	r, err := NewRegistry(def, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a registry over the built-in dashboard table.
func Default() *Registry {
	return MustRegistry(DefaultDefinition())
}

// HasRole reports whether key is a registered role.
func (r *Registry) HasRole(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.roles[roles.NormalizeString(key)]
	return ok
}

// Roles returns the registered role keys, sorted.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.roles))
	for k := range r.roles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRouteFor returns the landing route for roleKey. An org_admin with
// an organization lands on that organization's detail page instead of the
// generic dashboard. Unknown roles land on "/".
func (r *Registry) DefaultRouteFor(roleKey, organizationID string) string {
	key := roles.NormalizeString(roleKey)

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.roles[key]
	if !ok {
		return rootPath
	}
	if key == roles.OrgAdmin {
		if id := strings.TrimSpace(organizationID); id != "" {
			return strings.ReplaceAll(r.orgRoute, "{id}", url.PathEscape(id))
		}
	}
	return entry.DefaultRoute
}

// NavigationFor returns a fresh copy of the role's menu with the profile
// entry appended. Unknown roles get no items.
func (r *Registry) NavigationFor(roleKey string) []portalguard.NavigationItem {
	key := roles.NormalizeString(roleKey)

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.roles[key]
	if !ok || len(entry.Navigation) == 0 {
		return []portalguard.NavigationItem{}
	}
	out := make([]portalguard.NavigationItem, 0, len(entry.Navigation)+1)
	out = append(out, entry.Navigation...)
	if r.profile.Path != "" {
		out = append(out, r.profile)
	}
	return out
}

// RequirementFor returns the nearest rule covering p: an exact match or
// the longest prefix that ends on a segment boundary.
func (r *Registry) RequirementFor(p string) (portalguard.AccessRequirement, bool) {
	clean := cleanPath(p)

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.memo.Get(clean)
	if !ok {
		m = r.lookup(clean)
		r.memo.Add(clean, m)
	}
	return copyRequirement(m.req), m.ok
}

func (r *Registry) lookup(clean string) ruleMatch {
	for cur := clean; ; cur = path.Dir(cur) {
		if req, ok := r.rules[cur]; ok {
			return ruleMatch{path: cur, req: req, ok: true}
		}
		if cur == rootPath {
			return ruleMatch{}
		}
	}
}

// IsPathAllowed reports whether roleKey may open p. Paths without a rule
// are only allowed for registered roles when the registry is open by default.
func (r *Registry) IsPathAllowed(p, roleKey string) bool {
	key := roles.NormalizeString(roleKey)
	if key == "" || !r.HasRole(key) {
		return false
	}
	req, ok := r.RequirementFor(p)
	if !ok {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.open
	}
	return MatchesAny(roles.String(roleKey), req)
}

// SetRule adds or replaces the rule guarding p.
func (r *Registry) SetRule(p string, roleKeys ...string) error {
	return r.setRule(p, roleKeys)
}

// RemoveRule deletes the rule guarding exactly p.
func (r *Registry) RemoveRule(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, cleanPath(p))
	r.memo.Purge()
}

// Rules returns the guarded paths, sorted by path.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for p, req := range r.rules {
		out = append(out, Rule{Path: p, Roles: append([]string(nil), req.AllowedRoleKeys...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (r *Registry) setRule(p string, roleKeys []string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("rule path %q must be absolute", p)
	}
	keys := make([]string, 0, len(roleKeys))
	seen := make(map[string]struct{}, len(roleKeys))
	for _, k := range roleKeys {
		key := roles.NormalizeString(k)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return errors.New("rule " + p + " must allow at least one role")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[cleanPath(p)] = portalguard.AccessRequirement{AllowedRoleKeys: keys}
	r.memo.Purge()
	return nil
}

// MatchesAny reports whether raw equals any member of req.
func MatchesAny(raw roles.Raw, req portalguard.AccessRequirement) bool {
	for _, allowed := range req.AllowedRoleKeys {
		if roles.Equals(raw, roles.String(allowed)) {
			return true
		}
	}
	return false
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return rootPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func copyRequirement(req portalguard.AccessRequirement) portalguard.AccessRequirement {
	return portalguard.AccessRequirement{AllowedRoleKeys: append([]string(nil), req.AllowedRoleKeys...)}
}
