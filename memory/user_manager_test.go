package memory

import (
	"context"
	"errors"
	"testing"

	"portalguard"
	"portalguard/roles"
)

func TestUserManager_CRUDAndPassword(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(DefaultConfig())
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	user, err := svc.CreateUser(ctx, NewUser{Username: "bob", Email: "Bob@Example.com", Password: "pw1", Role: roles.String("employee")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Email != "bob@example.com" {
		t.Fatalf("email should be lower-cased: %q", user.Email)
	}

	if _, err := svc.CreateUser(ctx, NewUser{Username: "bob", Password: "x"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	if _, err := svc.GetUser(ctx, user.ID); err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u, err := svc.GetUserByUsername(ctx, "bob"); err != nil || u.ID != user.ID {
		t.Fatalf("get by username: %v", err)
	}

	newEmail := "bobby@example.com"
	org := " 7 "
	if err := svc.UpdateUser(ctx, user.ID, UserUpdate{Email: &newEmail, OrganizationID: &org}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if u, _ := svc.GetUser(ctx, user.ID); u.OrganizationID != "7" || u.Email != newEmail {
		t.Fatalf("update not applied: %+v", u)
	}
	_, _ = svc.CreateUser(ctx, NewUser{Username: "alice", Email: "dup@example.com", Password: "pw"})
	if err := svc.UpdateUser(ctx, user.ID, UserUpdate{Email: strPtr("dup@example.com")}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "bad", "new"); !errors.Is(err, portalguard.ErrInvalidCredentials) {
		t.Fatalf("expected wrong old password error, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "pw1", "new"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(ctx, portalguard.PasswordCredentials{Username: "bob", Password: "new"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	if err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetUser(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
