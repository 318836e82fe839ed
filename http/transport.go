package http

import (
	"context"
	"io"
	"net/http"

	"portalguard"
)

// TokenSource supplies and renews the access token for outgoing requests.
// *session.Session implements it.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// expirer is implemented by sources that can end the session when a fresh
// token is still rejected.
type expirer interface {
	Expire(ctx context.Context, cause error)
}

// Transport attaches the session's bearer token to each request. On a 401
// it refreshes once and replays the request; when the refresh fails the
// original response is returned.
type Transport struct {
	Source TokenSource
	// Base defaults to http.DefaultTransport
	Base http.RoundTripper
}

// NewClient returns an http.Client that authenticates through src.
func NewClient(src TokenSource) *http.Client {
	return &http.Client{Transport: &Transport{Source: src}}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := t.Source.AccessToken()
	if token == "" {
		return t.base().RoundTrip(req)
	}

	resp, err := t.base().RoundTrip(authorize(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.GetBody == nil {
		// body already consumed, nothing to replay
		return resp, nil
	}

	fresh, err := t.Source.Refresh(req.Context())
	if err != nil {
		return resp, nil
	}
	drain(resp)

	retry := authorize(req, fresh)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	resp, err = t.base().RoundTrip(retry)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		if e, ok := t.Source.(expirer); ok {
			e.Expire(req.Context(), portalguard.ErrTokenRejected)
		}
	}
	return resp, err
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func authorize(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", portalguard.BearerHeader(token))
	return out
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
