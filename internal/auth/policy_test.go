package auth

import (
	"errors"
	"net/http"
	"testing"

	"github.com/sennadevos/Chat-Application/internal/identity"
	"github.com/sennadevos/Chat-Application/internal/membership"
)

func TestPolicy_RouteRules(t *testing.T) {
	t.Parallel()

	member := &Principal{UserID: "u-1", Role: identity.RoleMember}
	admin := &Principal{UserID: "u-2", Role: identity.RoleAdmin}

	cases := []struct {
		name      string
		principal *Principal
		method    string
		path      string
		want      error
	}{
		{"preflight always allowed", nil, http.MethodOptions, "/users", nil},
		{"upgrade path allowed without principal", nil, http.MethodGet, "/ws", nil},
		{"login allowed without principal", nil, http.MethodPost, "/auth/login", nil},
		{"health allowed without principal", nil, http.MethodGet, "/health", nil},
		{"status allowed without principal", nil, http.MethodGet, "/status", nil},
		{"info allowed without principal", nil, http.MethodGet, "/info", nil},
		{"admin route without principal", nil, http.MethodGet, "/users", ErrUnauthenticated},
		{"admin route as member", member, http.MethodGet, "/users", ErrForbidden},
		{"admin route as admin", admin, http.MethodGet, "/users", nil},
		{"default route without principal", nil, http.MethodGet, "/channels/1", ErrUnauthenticated},
		{"default route with principal", member, http.MethodGet, "/channels/1", nil},
	}

	p := NewPolicy()
	for _, tc := range cases {
		err := p.Authorize(tc.principal, tc.method, tc.path, nil)
		if !errors.Is(err, tc.want) && !(err == nil && tc.want == nil) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

type channelResource struct {
	store     *membership.Store
	channelID string
}

func (r channelResource) IsMember(userID string) (bool, error) {
	return r.store.IsMember(r.channelID, userID)
}

func TestPolicy_ResourceMembership(t *testing.T) {
	t.Parallel()

	store := membership.NewStore()
	store.Register("ch-7")
	if err := store.AddMember("ch-7", "u-1"); err != nil {
		t.Fatalf("add: %v", err)
	}

	p := NewPolicy()
	res := channelResource{store: store, channelID: "ch-7"}

	member := &Principal{UserID: "u-1", Role: identity.RoleMember}
	outsider := &Principal{UserID: "u-2", Role: identity.RoleMember}

	if err := p.Authorize(member, http.MethodPost, "/channels/ch-7/messages", res); err != nil {
		t.Fatalf("member should pass resource check: %v", err)
	}
	if err := p.Authorize(outsider, http.MethodPost, "/channels/ch-7/messages", res); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-member: expected ErrForbidden, got %v", err)
	}

	// Membership is re-evaluated live: removal takes effect immediately.
	if err := store.RemoveMember("ch-7", "u-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := p.Authorize(member, http.MethodPost, "/channels/ch-7/messages", res); !errors.Is(err, ErrForbidden) {
		t.Fatalf("removed member: expected ErrForbidden, got %v", err)
	}

	// Unknown channel surfaces as a resource error, not a policy decision.
	missing := channelResource{store: store, channelID: "missing"}
	if err := p.Authorize(member, http.MethodPost, "/channels/missing/messages", missing); !errors.Is(err, membership.ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}
