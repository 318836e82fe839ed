package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"portalguard"
	"portalguard/memory"
	"portalguard/roles"
)

// mockServerStream implements grpc.ServerStream for testing
type mockServerStream struct {
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context     { return m.ctx }
func (m *mockServerStream) SendMsg(any) error            { return nil }
func (m *mockServerStream) RecvMsg(any) error            { return nil }
func (m *mockServerStream) SetHeader(metadata.MD) error  { return nil }
func (m *mockServerStream) SendHeader(metadata.MD) error { return nil }
func (m *mockServerStream) SetTrailer(metadata.MD)       {}

func withService(t *testing.T) *memory.Service {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.Users = memory.DemoUsers()
	svc, err := memory.NewService(cfg)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func accessToken(t *testing.T, svc *memory.Service, username string) string {
	t.Helper()
	res, err := svc.Login(context.Background(), portalguard.PasswordCredentials{Username: username, Password: "password"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	return res.AccessToken
}

func incoming(header string) context.Context {
	if header == "" {
		return metadata.NewIncomingContext(context.Background(), metadata.MD{})
	}
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", header))
}

func TestUnaryAuthInterceptor(t *testing.T) {
	svc := withService(t)
	token := accessToken(t, svc, "acme-manager")
	unary := New(svc, nil).UnaryAuthInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.Visitors/List"}

	tests := []struct {
		name string
		ctx  context.Context
		want codes.Code
	}{
		{name: "valid", ctx: incoming("Bearer " + token), want: codes.OK},
		{name: "lower case scheme", ctx: incoming("bearer " + token), want: codes.OK},
		{name: "no metadata", ctx: context.Background(), want: codes.Unauthenticated},
		{name: "missing", ctx: incoming(""), want: codes.Unauthenticated},
		{name: "bad prefix", ctx: incoming("Token " + token), want: codes.Unauthenticated},
		{name: "garbage", ctx: incoming("Bearer garbage"), want: codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := unary(tt.ctx, nil, info, func(ctx context.Context, _ any) (any, error) {
				p, ok := portalguard.PrincipalFromContext(ctx)
				if !ok || p.RoleKey != roles.Manager {
					t.Errorf("principal=%+v ok=%v", p, ok)
				}
				return "ok", nil
			})
			if got := status.Code(err); got != tt.want {
				t.Fatalf("code=%v want %v (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestUnaryAuthInterceptor_SkipMethods(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SkipMethods = []string{"/grpc.health.v1.Health/Check"}
	unary := New(withService(t), nil, cfg).UnaryAuthInterceptor()

	_, err := unary(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(context.Context, any) (any, error) { return nil, nil })
	if err != nil {
		t.Fatalf("skipped method must not be authenticated: %v", err)
	}
}

func TestWithRoles(t *testing.T) {
	svc := withService(t)
	i := New(svc, nil)
	unary := i.WithRoles(roles.OrgAdmin, roles.SuperAdmin)
	info := &grpc.UnaryServerInfo{FullMethod: "/portal.Organizations/Get"}
	handler := func(ctx context.Context, _ any) (any, error) {
		if _, ok := portalguard.RequirementFromContext(ctx); !ok {
			t.Errorf("requirement not in context")
		}
		return "ok", nil
	}

	tests := []struct {
		user string
		want codes.Code
	}{
		{user: "acme-admin", want: codes.OK},
		{user: "root", want: codes.OK},
		{user: "acme-employee", want: codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			ctx := incoming("Bearer " + accessToken(t, svc, tt.user))
			_, err := unary(ctx, nil, info, handler)
			if got := status.Code(err); got != tt.want {
				t.Fatalf("code=%v want %v", got, tt.want)
			}
		})
	}

	// role interceptor alone needs a principal
	_, err := i.UnaryRoleInterceptor(roles.Employee)(context.Background(), nil, info, handler)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("missing principal: %v", err)
	}
}

func TestWithStreamRoles(t *testing.T) {
	svc := withService(t)
	stream := New(svc, nil).WithStreamRoles(roles.Employee)
	info := &grpc.StreamServerInfo{FullMethod: "/portal.Attendance/Watch"}

	var seen *portalguard.Principal
	handler := func(_ any, ss grpc.ServerStream) error {
		seen, _ = portalguard.PrincipalFromContext(ss.Context())
		return nil
	}

	ss := &mockServerStream{ctx: incoming("Bearer " + accessToken(t, svc, "acme-employee"))}
	if err := stream(nil, ss, info, handler); err != nil {
		t.Fatalf("employee stream: %v", err)
	}
	if seen == nil || seen.Profile.Username != "acme-employee" {
		t.Fatalf("principal not propagated: %+v", seen)
	}

	ss = &mockServerStream{ctx: incoming("Bearer " + accessToken(t, svc, "acme-manager"))}
	if err := stream(nil, ss, info, handler); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("manager stream: %v", err)
	}
}

func TestStreamingAuthWrapper_CancelsOnLogout(t *testing.T) {
	svc := withService(t)
	i := New(svc, nil)
	token := accessToken(t, svc, "acme-employee")

	failed := make(chan error, 1)
	wrap := i.StreamingAuthWrapper(StreamingAuthConfig{
		ReauthInterval: 10 * time.Millisecond,
		OnAuthFailure:  func(_ context.Context, err error) { failed <- err },
	}, roles.Employee)

	chain := ChainStreamInterceptors(i.StreamAuthInterceptor())
	handler := wrap(func(_ any, ss grpc.ServerStream) error {
		if err := svc.Logout(context.Background(), token); err != nil {
			t.Errorf("Logout: %v", err)
		}
		select {
		case <-ss.Context().Done():
			return nil
		case <-time.After(2 * time.Second):
			t.Errorf("stream was not cancelled")
			return nil
		}
	})

	ss := &mockServerStream{ctx: incoming("Bearer " + token)}
	if err := chain(nil, ss, &grpc.StreamServerInfo{FullMethod: "/portal.Attendance/Watch"}, handler); err != nil {
		t.Fatalf("stream: %v", err)
	}
	select {
	case err := <-failed:
		if err == nil {
			t.Fatalf("expected failure cause")
		}
	case <-time.After(time.Second):
		t.Fatalf("OnAuthFailure not called")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		want    string
		wantErr error
	}{
		{name: "valid", ctx: incoming("Bearer abc"), want: "abc"},
		{name: "no metadata", ctx: context.Background(), wantErr: ErrMissingMetadata},
		{name: "missing", ctx: incoming(""), wantErr: ErrMissingToken},
		{name: "empty token", ctx: incoming("Bearer "), wantErr: ErrMissingToken},
		{name: "basic", ctx: incoming("Basic abc"), wantErr: ErrInvalidTokenFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.ctx)
			if err != tt.wantErr {
				t.Fatalf("err=%v want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("token=%q want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultErrorHandler(t *testing.T) {
	if status.Code(defaultErrorHandler(context.Background(), portalguard.ErrNetwork)) != codes.Unavailable {
		t.Fatalf("network errors must map to Unavailable")
	}
	if status.Code(defaultErrorHandler(context.Background(), portalguard.ErrTokenRejected)) != codes.Unauthenticated {
		t.Fatalf("rejected tokens must map to Unauthenticated")
	}
}
