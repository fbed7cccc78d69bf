package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sennadevos/Chat-Application/internal/identity"
	"github.com/sennadevos/Chat-Application/internal/session"
)

func newTestBoundary(t *testing.T) (http.Handler, *session.Registry, *int) {
	t.Helper()

	reg := session.NewRegistry(time.Hour)
	users := knownUsers(map[string]identity.User{
		"u-1": {ID: "u-1", Username: "alice", Role: identity.RoleMember},
		"u-2": {ID: "u-2", Username: "root", Role: identity.RoleAdmin},
	})

	hits := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	})

	mw := Middleware(testLogger(), NewAuthenticator(testLogger(), reg, users), NewPolicy())
	return mw(next), reg, &hits
}

func TestMiddleware_PublicRouteWithoutToken(t *testing.T) {
	t.Parallel()

	h, _, hits := newTestBoundary(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK || *hits != 1 {
		t.Fatalf("public route should reach handler: code=%d hits=%d", rr.Code, *hits)
	}
}

func TestMiddleware_InvalidTokenRejectedEvenOnPublicRoute(t *testing.T) {
	t.Parallel()

	h, _, hits := newTestBoundary(t)

	r := httptest.NewRequest("GET", "/health", nil)
	r.Header.Set("Authorization", "Bearer bogus")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rr.Code)
	}
	if *hits != 0 {
		t.Fatalf("handler must not run after rejection")
	}
}

func TestMiddleware_ExpiredTokenRejectedBeforeHandler(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := session.NewRegistry(time.Minute, session.WithClock(func() time.Time { return now }))
	token, _, err := reg.Issue("u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(time.Hour)

	users := knownUsers(map[string]identity.User{"u-1": {ID: "u-1", Role: identity.RoleMember}})
	hits := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hits++ })
	h := Middleware(testLogger(), NewAuthenticator(testLogger(), reg, users), NewPolicy())(next)

	r := httptest.NewRequest("GET", "/channels/1/messages", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)

	if rr.Code != http.StatusUnauthorized || hits != 0 {
		t.Fatalf("expected boundary rejection, got code=%d hits=%d", rr.Code, hits)
	}
}

func TestMiddleware_ProtectedRouteRequiresPrincipal(t *testing.T) {
	t.Parallel()

	h, _, hits := newTestBoundary(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/channels/1", nil))

	if rr.Code != http.StatusUnauthorized || *hits != 0 {
		t.Fatalf("expected 401 without principal, got code=%d hits=%d", rr.Code, *hits)
	}
}

func TestMiddleware_AdminRoute(t *testing.T) {
	t.Parallel()

	h, reg, hits := newTestBoundary(t)

	memberToken, _, err := reg.Issue("u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	adminToken, _, err := reg.Issue("u-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := httptest.NewRequest("GET", "/users", nil)
	r.Header.Set("Authorization", "Bearer "+memberToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Code != http.StatusForbidden || *hits != 0 {
		t.Fatalf("member on admin route: expected 403, got code=%d hits=%d", rr.Code, *hits)
	}

	r = httptest.NewRequest("GET", "/users", nil)
	r.Header.Set("Authorization", "Bearer "+adminToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Code != http.StatusOK || *hits != 1 {
		t.Fatalf("admin on admin route: expected 200, got code=%d hits=%d", rr.Code, *hits)
	}
}

func TestMiddleware_InstallsPrincipal(t *testing.T) {
	t.Parallel()

	reg := session.NewRegistry(time.Hour)
	token, _, err := reg.Issue("u-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	users := knownUsers(map[string]identity.User{"u-1": {ID: "u-1", Role: identity.RoleMember}})

	var got Principal
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = FromContext(r.Context())
	})
	h := Middleware(testLogger(), NewAuthenticator(testLogger(), reg, users), NewPolicy())(next)

	r := httptest.NewRequest("GET", "/channels/1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !ok || got.UserID != "u-1" {
		t.Fatalf("expected principal in handler context, got %+v ok=%v", got, ok)
	}
}
