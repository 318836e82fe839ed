package identity_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"portalguard"
	"portalguard/identity"
	"portalguard/memory"
	"portalguard/roles"
)

func newDevServer(t *testing.T) (*httptest.Server, *memory.Service) {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.Users = memory.DemoUsers()
	svc, err := memory.NewService(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(identity.NewHandler(svc))
	t.Cleanup(srv.Close)
	return srv, svc
}

func TestClient_AgainstDevHandler(t *testing.T) {
	ctx := context.Background()
	srv, _ := newDevServer(t)

	c, err := identity.NewClient(srv.URL + "/")
	require.NoError(t, err)

	res, err := c.Login(ctx, portalguard.PasswordCredentials{Username: "acme-admin", Password: "password"})
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	require.Equal(t, "42", res.User.OrganizationID)
	require.Equal(t, roles.OrgAdmin, roles.Normalize(res.User.Role))

	u, err := c.CurrentUser(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, u.ID)

	pair, err := c.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, res.AccessToken, pair.AccessToken)

	_, err = c.Refresh(ctx, res.RefreshToken)
	require.ErrorIs(t, err, portalguard.ErrRefreshFailed, "rotated refresh token must not be reusable")

	require.NoError(t, c.Logout(ctx, pair.AccessToken))
	_, err = c.CurrentUser(ctx, pair.AccessToken)
	require.ErrorIs(t, err, portalguard.ErrTokenRejected)

	_, err = c.Login(ctx, portalguard.PasswordCredentials{Username: "acme-admin", Password: "wrong"})
	require.ErrorIs(t, err, portalguard.ErrInvalidCredentials)
	require.True(t, identity.IsAPIError(err))
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		call   func(c *identity.Client) error
		want   error
	}{
		{name: "login 401", status: 401, call: login, want: portalguard.ErrInvalidCredentials},
		{name: "login 400", status: 400, call: login, want: portalguard.ErrInvalidCredentials},
		{name: "login 403", status: 403, call: login, want: portalguard.ErrInvalidCredentials},
		{name: "login 500", status: 500, call: login, want: portalguard.ErrNetwork},
		{name: "login 429", status: 429, call: login, want: portalguard.ErrNetwork},
		{name: "login 404", status: 404, call: login, want: identity.ErrInvalidResponse},
		{name: "me 401", status: 401, call: me, want: portalguard.ErrTokenRejected},
		{name: "me 403", status: 403, call: me, want: portalguard.ErrTokenRejected},
		{name: "me 502", status: 502, call: me, want: portalguard.ErrNetwork},
		{name: "me 408", status: 408, call: me, want: portalguard.ErrNetwork},
		{name: "refresh 401", status: 401, call: refresh, want: portalguard.ErrRefreshFailed},
		{name: "refresh 400", status: 400, call: refresh, want: portalguard.ErrRefreshFailed},
		{name: "refresh 503", status: 503, call: refresh, want: portalguard.ErrNetwork},
		{name: "logout 401", status: 401, call: logout, want: portalguard.ErrTokenRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope","message":"server says no"}`))
			}))
			defer srv.Close()

			c, err := identity.NewClient(srv.URL)
			require.NoError(t, err)

			err = tt.call(c)
			require.ErrorIs(t, err, tt.want)

			var apiErr *identity.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, "server says no", apiErr.Message)
		})
	}
}

func TestClient_TransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := identity.NewClient(url)
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "rt")
	require.ErrorIs(t, err, portalguard.ErrNetwork)
	require.False(t, identity.IsAPIError(err))
}

func TestClient_CanceledContext(t *testing.T) {
	srv, _ := newDevServer(t)
	c, err := identity.NewClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.CurrentUser(ctx, "at")
	require.ErrorIs(t, err, portalguard.ErrNetwork)
	require.ErrorIs(t, err, context.Canceled)
}

func TestClient_CurrentUserWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":"7","username":"x","role":{"id":"manager","name":"Manager"},"organizationId":"9"}}`))
	}))
	defer srv.Close()

	c, err := identity.NewClient(srv.URL)
	require.NoError(t, err)

	u, err := c.CurrentUser(context.Background(), "at")
	require.NoError(t, err)
	require.Equal(t, "7", u.ID)
	require.Equal(t, "9", u.OrganizationID)
	require.Equal(t, roles.Manager, roles.Normalize(u.Role))
}

func TestClient_MalformedResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/refresh") {
			_, _ = w.Write([]byte(`{"refresh_token":"only"}`))
			return
		}
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c, err := identity.NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Login(context.Background(), portalguard.PasswordCredentials{Username: "a", Password: "b"})
	require.ErrorIs(t, err, identity.ErrInvalidResponse)

	_, err = c.Refresh(context.Background(), "rt")
	require.ErrorIs(t, err, identity.ErrInvalidResponse)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := identity.NewClient("ftp://example.com")
	require.Error(t, err)
	_, err = identity.NewClient("://")
	require.Error(t, err)
}

func TestClient_MetricsAndSpans(t *testing.T) {
	srv, _ := newDevServer(t)

	reg := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, err := identity.NewClient(srv.URL,
		identity.WithMetrics(reg, prometheus.Labels{"service": "test"}),
		identity.WithTracer(tp.Tracer("test")),
	)
	require.NoError(t, err)

	// a second client on the same registry reuses the collectors
	_, err = identity.NewClient(srv.URL, identity.WithMetrics(reg, prometheus.Labels{"service": "test"}))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Login(ctx, portalguard.PasswordCredentials{Username: "root", Password: "password"})
	require.NoError(t, err)
	_, err = c.Login(ctx, portalguard.PasswordCredentials{Username: "root", Password: "bad"})
	require.Error(t, err)

	expected := `
# HELP portalguard_identity_errors_total Total number of failed identity API requests by class.
# TYPE portalguard_identity_errors_total counter
portalguard_identity_errors_total{error_class="invalid_credentials",operation="login",service="test"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "portalguard_identity_errors_total"))
	series, err := testutil.GatherAndCount(reg, "portalguard_identity_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, series) // 200 and 401

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "identity.login", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code)
	require.Equal(t, codes.Error, spans[1].Status().Code)
}

func login(c *identity.Client) error {
	_, err := c.Login(context.Background(), portalguard.PasswordCredentials{Username: "u", Password: "p"})
	return err
}

func me(c *identity.Client) error {
	_, err := c.CurrentUser(context.Background(), "at")
	return err
}

func refresh(c *identity.Client) error {
	_, err := c.Refresh(context.Background(), "rt")
	return err
}

func logout(c *identity.Client) error {
	return c.Logout(context.Background(), "at")
}
