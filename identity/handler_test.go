package identity_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandler_RejectsMalformedRequests(t *testing.T) {
	srv, _ := newDevServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		want   int
	}{
		{name: "login bad json", method: http.MethodPost, path: "/auth/login", body: "{", want: http.StatusBadRequest},
		{name: "login blank", method: http.MethodPost, path: "/auth/login", body: `{"username":"","password":""}`, want: http.StatusUnauthorized},
		{name: "me without token", method: http.MethodGet, path: "/auth/me", want: http.StatusUnauthorized},
		{name: "me with garbage", method: http.MethodGet, path: "/auth/me", auth: "Bearer nope", want: http.StatusUnauthorized},
		{name: "refresh without token", method: http.MethodPost, path: "/auth/refresh", body: `{}`, want: http.StatusBadRequest},
		{name: "logout without token", method: http.MethodPost, path: "/auth/logout", want: http.StatusUnauthorized},
		{name: "logout with garbage", method: http.MethodPost, path: "/auth/logout", auth: "Bearer nope", want: http.StatusNoContent},
		{name: "health", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "wrong method", method: http.MethodGet, path: "/auth/login", want: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHandler_LoginResponseShape(t *testing.T) {
	srv, _ := newDevServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"acme-manager","password":"password"}`))
	srv.Config.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, field := range []string{`"access_token"`, `"refresh_token"`, `"token_type":"Bearer"`, `"organization_id":"42"`, `"role":"manager"`} {
		require.Contains(t, body, field)
	}
}
