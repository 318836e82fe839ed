package rbac

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"portalguard"
	"portalguard/roles"
)

func principal(role roles.Raw, org string) *portalguard.Principal {
	return portalguard.NewPrincipal(portalguard.User{ID: "u1", Username: "jdoe", Role: role, OrganizationID: org}, "at", "rt")
}

func TestEvaluator_CanAccess(t *testing.T) {
	e := NewEvaluator(Default())
	tests := []struct {
		name string
		role string
		req  portalguard.AccessRequirement
		want bool
	}{
		{name: "member", role: roles.Manager, req: portalguard.Require(roles.Manager), want: true},
		{name: "member spelled differently", role: "Super Admin", req: portalguard.Require("super-admin"), want: true},
		{name: "not a member", role: roles.Employee, req: portalguard.Require(roles.Manager, roles.OrgAdmin), want: false},
		{name: "no hierarchy", role: roles.SuperAdmin, req: portalguard.Require(roles.Employee), want: false},
		{name: "empty role", role: "", req: portalguard.Require(roles.Employee), want: false},
		{name: "empty requirement", role: roles.Employee, req: portalguard.AccessRequirement{}, want: false},
		{name: "unknown role listed", role: "auditor", req: portalguard.Require("auditor"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.CanAccess(tt.role, tt.req); got != tt.want {
				t.Fatalf("CanAccess(%q, %v)=%v want %v", tt.role, tt.req.AllowedRoleKeys, got, tt.want)
			}
		})
	}
}

func TestEvaluator_UnknownRoleIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := NewEvaluator(nil, WithLogger(logger))

	if e.CanAccess("Auditor", portalguard.Require(roles.Employee)) {
		t.Fatalf("unknown role must be denied")
	}
	if !strings.Contains(buf.String(), "role_key=auditor") {
		t.Fatalf("expected warning for unknown role, got %q", buf.String())
	}

	p := principal(roles.String("auditor"), "")
	e.CanAccess("auditor", portalguard.Require(roles.Manager))
	e.DefaultRoute(p)
	e.Navigation(p)
	if n := strings.Count(buf.String(), "level=WARN"); n != 1 {
		t.Fatalf("expected one warning per role key, got %d in %q", n, buf.String())
	}

	e.CanAccess("ghost", portalguard.Require(roles.Employee))
	if n := strings.Count(buf.String(), "level=WARN"); n != 2 {
		t.Fatalf("a new unknown role must warn again, got %d", n)
	}
}

func TestEvaluator_DefaultRoute(t *testing.T) {
	e := NewEvaluator(nil)

	if got := e.DefaultRoute(nil); got != "/" {
		t.Fatalf("nil principal: %q", got)
	}
	if got := e.DefaultRoute(principal(roles.String("employee"), "")); got != "/employee/dashboard" {
		t.Fatalf("employee: %q", got)
	}
	if got := e.DefaultRoute(principal(roles.Object("org_admin", ""), "42")); got != "/admin-panel/organizations/42" {
		t.Fatalf("org admin with org: %q", got)
	}
	if got := e.DefaultRoute(principal(roles.Object("", "Org Admin"), "")); got != "/org-admin/dashboard" {
		t.Fatalf("org admin without org: %q", got)
	}
	if got := e.DefaultRoute(principal(roles.None(), "")); got != "/" {
		t.Fatalf("no role: %q", got)
	}
}

func TestEvaluator_NavigationAndPath(t *testing.T) {
	e := NewEvaluator(nil)

	p := principal(roles.String("Manager"), "")
	items := e.Navigation(p)
	if len(items) == 0 || items[0].Path != "/manager/dashboard" {
		t.Fatalf("manager navigation: %+v", items)
	}
	if len(e.Navigation(principal(roles.String("auditor"), ""))) != 0 {
		t.Fatalf("unknown role should see no navigation")
	}
	if len(e.Navigation(nil)) != 0 {
		t.Fatalf("nil principal should see no navigation")
	}

	if !e.CanAccessPath(p, "/manager/team/7") {
		t.Fatalf("manager should open team pages")
	}
	if e.CanAccessPath(p, "/admin-panel/dashboard") {
		t.Fatalf("manager must not open admin panel")
	}
	if e.CanAccessPath(nil, "/profile") {
		t.Fatalf("nil principal must be denied")
	}
}

func TestEvaluator_ResolveRole(t *testing.T) {
	e := NewEvaluator(nil)

	key, err := e.ResolveRole(principal(roles.Object("", "Super Admin"), ""))
	if err != nil || key != roles.SuperAdmin {
		t.Fatalf("ResolveRole=%q,%v", key, err)
	}
	if _, err := e.ResolveRole(principal(roles.String("ghost"), "")); !errors.Is(err, portalguard.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := e.ResolveRole(nil); !errors.Is(err, portalguard.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestProperty_UnknownRoleDenied(t *testing.T) {
	e := NewEvaluator(nil, WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	rapid.Check(t, func(t *rapid.T) {
		role := rapid.StringMatching(`[a-z ]{0,12}`).Draw(t, "role")
		if roles.Known(roles.NormalizeString(role)) {
			t.Skip("known role")
		}
		keys := rapid.SliceOfN(rapid.SampledFrom(append(roles.All(), role)), 1, 5).Draw(t, "keys")
		if e.CanAccess(role, portalguard.Require(keys...)) {
			t.Fatalf("unknown role %q granted for %v", role, keys)
		}
	})
}

func TestProperty_MemberGranted(t *testing.T) {
	e := NewEvaluator(nil)
	rapid.Check(t, func(t *rapid.T) {
		role := rapid.SampledFrom(roles.All()).Draw(t, "role")
		others := rapid.SliceOf(rapid.SampledFrom(roles.All())).Draw(t, "others")
		keys := append(others, role)
		if !e.CanAccess(role, portalguard.Require(keys...)) {
			t.Fatalf("%q not granted for %v", role, keys)
		}
	})
}
