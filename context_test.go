package portalguard

import (
	"context"
	"testing"

	"portalguard/roles"
)

func TestContext_Principal(t *testing.T) {
	base := context.Background()
	if IsAuthenticated(base) {
		t.Fatalf("empty context must not be authenticated")
	}

	p := NewPrincipal(User{ID: "u1", Role: roles.String("employee")}, "at", "rt")
	ctx := WithPrincipal(base, p)

	got, ok := PrincipalFromContext(ctx)
	if !ok || got.Profile.ID != "u1" {
		t.Fatalf("expected principal in context")
	}
	key, ok := RoleKeyFromContext(ctx)
	if !ok || key != roles.Employee {
		t.Fatalf("role key from context: %q %v", key, ok)
	}

	ctx = WithRequirement(ctx, Require(roles.Employee))
	req, ok := RequirementFromContext(ctx)
	if !ok || len(req.AllowedRoleKeys) != 1 {
		t.Fatalf("requirement from context")
	}
}

func TestContext_MustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for missing principal")
		}
	}()
	_ = MustPrincipalFromContext(context.Background())
}
