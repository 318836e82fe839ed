// Package identity speaks the identity REST API: a client implementing
// portalguard.IdentityAPI and a development handler serving the same
// endpoints over any IdentityAPI.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"portalguard"
)

const (
	opLogin   = "login"
	opMe      = "me"
	opRefresh = "refresh"
	opLogout  = "logout"

	tracerName = "portalguard/identity"

	// error bodies larger than this are truncated
	maxErrorBody = 4 << 10
)

// Client is an HTTP client for the identity API.
type Client struct {
	base      *url.URL
	http      *http.Client
	tracer    trace.Tracer
	metrics   *clientMetrics
	userAgent string
}

var _ portalguard.IdentityAPI = (*Client)(nil)

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	cfg := Config{Timeout: 10 * time.Second, UserAgent: "portalguard"}
	for _, opt := range opts {
		opt(&cfg)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	var m *clientMetrics
	if cfg.Registerer != nil {
		m, err = newClientMetrics(cfg.Registerer, cfg.MetricLabels)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}

	return &Client{
		base:      base,
		http:      hc,
		tracer:    tracer,
		metrics:   m,
		userAgent: cfg.UserAgent,
	}, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Login exchanges credentials for tokens and the user payload.
func (c *Client) Login(ctx context.Context, credentials portalguard.PasswordCredentials) (*portalguard.LoginResult, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	var out portalguard.LoginResult
	err := c.call(ctx, opLogin, http.MethodPost, "/auth/login", "", loginRequest{
		Username: credentials.Username,
		Password: credentials.Password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &APIError{Operation: opLogin, StatusCode: http.StatusOK, Message: "no access token", Err: ErrInvalidResponse}
	}
	return &out, nil
}

// CurrentUser confirms accessToken and returns its user. Both a bare user
// object and one wrapped in {"user": ...} are accepted.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*portalguard.User, error) {
	var raw json.RawMessage
	if err := c.call(ctx, opMe, http.MethodGet, "/auth/me", accessToken, nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *portalguard.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var u portalguard.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, &APIError{Operation: opMe, StatusCode: http.StatusOK, Message: err.Error(), Err: ErrInvalidResponse}
	}
	return &u, nil
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*portalguard.TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", portalguard.ErrRefreshFailed)
	}
	var out portalguard.TokenPair
	if err := c.call(ctx, opRefresh, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &APIError{Operation: opRefresh, StatusCode: http.StatusOK, Message: "no access token", Err: ErrInvalidResponse}
	}
	return &out, nil
}

// Logout invalidates accessToken remotely.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.call(ctx, opLogout, http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

// call performs one request inside a span and records its metrics.
func (c *Client) call(ctx context.Context, op, method, path, token string, in, out any) error {
	ctx, span := c.tracer.Start(ctx, "identity."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	status, err := c.exchange(ctx, op, method, path, token, in, out)
	c.metrics.observe(op, status, time.Since(start), err)

	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, classifyError(err))
	}
	return err
}

func (c *Client) exchange(ctx context.Context, op, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", portalguard.BearerHeader(token))
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("identity %s: %w: %w", op, portalguard.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
			Err:        statusError(op, resp.StatusCode),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &APIError{Operation: op, StatusCode: resp.StatusCode, Message: err.Error(), Err: ErrInvalidResponse}
	}
	return resp.StatusCode, nil
}

// errorMessage prefers the JSON message field, then the error field, then
// the raw body.
func errorMessage(data []byte) string {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return strings.TrimSpace(string(data))
}
