package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"portalguard"
)

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	next      string
	refreshes int
	expired   error
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Refresh(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.next == "" {
		return "", portalguard.ErrRefreshFailed
	}
	f.token = f.next
	return f.token, nil
}

func (f *fakeTokens) Expire(_ context.Context, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = cause
}

// apiServer accepts only the bearer token "fresh" and echoes request bodies.
func apiServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("stale"))
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTransport_RefreshAndReplay(t *testing.T) {
	srv := apiServer(t)
	tokens := &fakeTokens{token: "stale", next: "fresh"}
	client := NewClient(tokens)

	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "payload" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if tokens.refreshes != 1 {
		t.Fatalf("refreshes=%d", tokens.refreshes)
	}

	// the renewed token is used directly afterwards
	resp, err = client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || tokens.refreshes != 1 {
		t.Fatalf("status=%d refreshes=%d", resp.StatusCode, tokens.refreshes)
	}
}

func TestTransport_RefreshFailureReturnsOriginal(t *testing.T) {
	srv := apiServer(t)
	tokens := &fakeTokens{token: "stale"}

	resp, err := NewClient(tokens).Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusUnauthorized || string(body) != "stale" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if tokens.expired != nil {
		t.Fatalf("failed refresh already ended the session; Expire must not be called")
	}
}

func TestTransport_StillRejectedExpires(t *testing.T) {
	srv := apiServer(t)
	tokens := &fakeTokens{token: "stale", next: "also-stale"}

	resp, err := NewClient(tokens).Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if tokens.refreshes != 1 {
		t.Fatalf("refresh must happen once, got %d", tokens.refreshes)
	}
	if tokens.expired != portalguard.ErrTokenRejected {
		t.Fatalf("expired=%v", tokens.expired)
	}
}

func TestTransport_NoTokenPassesThrough(t *testing.T) {
	srv := apiServer(t)
	tokens := &fakeTokens{}

	resp, err := NewClient(tokens).Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || tokens.refreshes != 0 {
		t.Fatalf("status=%d refreshes=%d", resp.StatusCode, tokens.refreshes)
	}
}
