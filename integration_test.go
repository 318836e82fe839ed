package portalguard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"portalguard"
	guardhttp "portalguard/http"
	"portalguard/identity"
	"portalguard/memory"
	"portalguard/rbac"
	"portalguard/roles"
	"portalguard/session"
	"portalguard/store"
)

func TestIntegration_PortalFlow(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := memory.DefaultConfig()
	cfg.Users = memory.DemoUsers()
	svc, err := memory.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	idp := httptest.NewServer(identity.NewHandler(svc))
	defer idp.Close()

	client, err := identity.NewClient(idp.URL)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	eval := rbac.NewEvaluator(nil, rbac.WithLogger(logger))
	path := filepath.Join(t.TempDir(), "session.json")
	newSession := func() *session.Session {
		return session.New(client, store.NewFile(path), session.WithLogger(logger), session.WithEvaluator(eval))
	}

	// resource server resolving every request against the identity API
	mw := guardhttp.New(eval, guardhttp.BearerPrincipal(svc, 16, 0, logger), guardhttp.APIConfig())
	api := httptest.NewServer(mw.RequireRegisteredPath(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	defer api.Close()

	get := func(c *http.Client, path string) int {
		t.Helper()
		resp, err := c.Get(api.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	s := newSession()
	p, err := s.Login(ctx, "acme-manager", "password")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if p.RoleKey != roles.Manager {
		t.Fatalf("role = %q", p.RoleKey)
	}
	httpClient := guardhttp.NewClient(s)

	t.Run("role routes", func(t *testing.T) {
		if got := s.DefaultRoute(); got != "/manager/dashboard" {
			t.Errorf("DefaultRoute = %q", got)
		}
		if got := get(httpClient, "/manager/team"); got != http.StatusOK {
			t.Errorf("/manager/team status = %d", got)
		}
		if got := get(httpClient, "/org-admin/employees"); got != http.StatusForbidden {
			t.Errorf("/org-admin/employees status = %d", got)
		}
		if got := get(http.DefaultClient, "/manager/team"); got != http.StatusUnauthorized {
			t.Errorf("anonymous status = %d", got)
		}
	})

	t.Run("revoked access token is refreshed", func(t *testing.T) {
		old := s.AccessToken()
		if err := svc.Logout(ctx, old); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		if got := get(httpClient, "/manager/team"); got != http.StatusOK {
			t.Fatalf("status after refresh = %d", got)
		}
		if s.AccessToken() == old {
			t.Fatalf("access token was not replaced")
		}
		if s.State() != session.Authenticated {
			t.Fatalf("state = %v", s.State())
		}
	})

	t.Run("restore from disk", func(t *testing.T) {
		restored := newSession()
		if got := restored.Restore(ctx); got != session.Restoring {
			t.Fatalf("Restore = %v", got)
		}
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		snap, err := restored.Await(waitCtx)
		if err != nil {
			t.Fatalf("Await: %v", err)
		}
		if snap.State != session.Authenticated || snap.Degraded {
			t.Fatalf("snapshot = %+v", snap)
		}
		if snap.Principal.Profile.Username != "acme-manager" {
			t.Fatalf("user = %q", snap.Principal.Profile.Username)
		}
		if snap.Principal.AccessToken != s.AccessToken() {
			t.Fatalf("restored token differs from the refreshed one")
		}

		restored.Logout(ctx)
		if _, err := svc.CurrentUser(ctx, snap.Principal.AccessToken); err == nil {
			t.Fatalf("logout must revoke the access token")
		}
		if again := newSession().Restore(ctx); again != session.Unauthenticated {
			t.Fatalf("Restore after logout = %v", again)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := newSession().Login(ctx, "acme-manager", "nope")
		if err == nil || !errors.Is(err, portalguard.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}
