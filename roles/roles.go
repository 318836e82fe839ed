// Package roles resolves the loosely shaped role values delivered by the
// identity API into canonical role keys.
package roles

import (
	"strings"
	"unicode"
)

// Canonical role keys known to the dashboard.
const (
	SuperAdmin = "super_admin"
	OrgAdmin   = "org_admin"
	Manager    = "manager"
	Employee   = "employee"
)

var known = map[string]struct{}{
	SuperAdmin: {},
	OrgAdmin:   {},
	Manager:    {},
	Employee:   {},
}

// All returns the canonical role keys in display order.
func All() []string {
	return []string{SuperAdmin, OrgAdmin, Manager, Employee}
}

// Known reports whether key is one of the canonical role keys.
func Known(key string) bool {
	_, ok := known[key]
	return ok
}

// NormalizeString lower-cases s, trims it and collapses every run of
// whitespace, underscores or hyphens into a single underscore.
func NormalizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Normalize returns the canonical key for raw. An empty Raw yields "".
// For object roles the id wins over the name whenever it is non-blank.
func Normalize(raw Raw) string {
	switch raw.kind {
	case KindString:
		return NormalizeString(raw.value)
	case KindObject:
		if strings.TrimSpace(raw.id) != "" {
			return NormalizeString(raw.id)
		}
		return NormalizeString(raw.name)
	default:
		return ""
	}
}

// Equals reports whether a and b describe the same role. Identical raw
// strings are equal even when they do not normalize to anything.
func Equals(a, b Raw) bool {
	if a.kind == KindString && b.kind == KindString && a.value == b.value {
		return true
	}
	return Normalize(a) == Normalize(b)
}

// EqualsKey compares raw against an already canonical key.
func EqualsKey(raw Raw, key string) bool {
	return Equals(raw, String(key))
}
