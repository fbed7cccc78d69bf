package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sennadevos/Chat-Application/internal/identity"
	"github.com/sennadevos/Chat-Application/internal/session"
)

type finderFunc func(ctx context.Context, id string) (identity.User, error)

func (f finderFunc) FindUserByID(ctx context.Context, id string) (identity.User, error) {
	return f(ctx, id)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func knownUsers(users map[string]identity.User) identity.Finder {
	return finderFunc(func(_ context.Context, id string) (identity.User, error) {
		u, ok := users[id]
		if !ok {
			return identity.User{}, identity.ErrNotFound
		}
		return u, nil
	})
}

func TestHeaderToken(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/channels/1", nil)
	if _, err := HeaderToken(r); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken without header, got %v", err)
	}

	r.Header.Set("Authorization", "Bearer tok-123")
	token, err := HeaderToken(r)
	if err != nil || token != "tok-123" {
		t.Fatalf("expected tok-123, got %q err=%v", token, err)
	}

	// More than one candidate is ambiguous.
	r.Header.Add("Authorization", "Bearer tok-456")
	if _, err := HeaderToken(r); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken for duplicate headers, got %v", err)
	}

	r2 := httptest.NewRequest("GET", "/channels/1", nil)
	r2.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	if _, err := HeaderToken(r2); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken for non-bearer scheme, got %v", err)
	}
}

func TestQueryToken(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/ws", nil)
	if _, err := QueryToken(r); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken without param, got %v", err)
	}

	r = httptest.NewRequest("GET", "/ws?token=tok-123", nil)
	token, err := QueryToken(r)
	if err != nil || token != "tok-123" {
		t.Fatalf("expected tok-123, got %q err=%v", token, err)
	}

	r = httptest.NewRequest("GET", "/ws?token=a&token=b", nil)
	if _, err := QueryToken(r); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken for repeated param, got %v", err)
	}
}

func TestAuthenticate_Success(t *testing.T) {
	t.Parallel()

	reg := session.NewRegistry(time.Hour)
	token, _, err := reg.Issue("u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	users := knownUsers(map[string]identity.User{
		"u-1": {ID: "u-1", Username: "alice", Role: identity.RoleAdmin},
	})
	a := NewAuthenticator(testLogger(), reg, users)

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	p, err := a.Authenticate(context.Background(), r, QueryToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.UserID != "u-1" || p.Role != identity.RoleAdmin {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestAuthenticate_CollapsesUnknownAndExpired(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := clock
	reg := session.NewRegistry(time.Minute, session.WithClock(func() time.Time { return now }))

	expired, _, err := reg.Issue("u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = clock.Add(2 * time.Minute)

	users := knownUsers(map[string]identity.User{"u-1": {ID: "u-1", Role: identity.RoleMember}})
	a := NewAuthenticator(testLogger(), reg, users)

	for _, token := range []string{expired, "never-issued"} {
		r := httptest.NewRequest("GET", "/ws?token="+token, nil)
		_, err := a.Authenticate(context.Background(), r, QueryToken)
		// Unknown and expired are indistinguishable to the caller.
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token=%q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestAuthenticate_UserNotFound(t *testing.T) {
	t.Parallel()

	reg := session.NewRegistry(time.Hour)
	token, _, err := reg.Issue("ghost")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	a := NewAuthenticator(testLogger(), reg, knownUsers(nil))

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	if _, err := a.Authenticate(context.Background(), r, QueryToken); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthenticate_CancelledContext(t *testing.T) {
	t.Parallel()

	reg := session.NewRegistry(time.Hour)
	token, _, err := reg.Issue("u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	a := NewAuthenticator(testLogger(), reg, knownUsers(map[string]identity.User{
		"u-1": {ID: "u-1", Role: identity.RoleMember},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	if _, err := a.Authenticate(ctx, r, QueryToken); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Fatalf("unexpected principal in fresh context")
	}

	ctx = WithPrincipal(ctx, Principal{UserID: "u-1", Role: identity.RoleMember})
	p, ok := FromContext(ctx)
	if !ok || p.UserID != "u-1" {
		t.Fatalf("expected installed principal, got %+v ok=%v", p, ok)
	}
}
