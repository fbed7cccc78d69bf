// Package auth implements the handshake authenticator and the route
// authorization policy.
//
// Authentication resolves an opaque token against the session registry and
// produces a Principal, installed once into the request context and read-only
// afterwards. Authorization evaluates an ordered rule set per route, with
// resource-level membership checked at the moment of the mutating action.
package auth

import (
	"context"

	"github.com/sennadevos/Chat-Application/internal/identity"
)

// Principal is the authenticated identity attached to a request or
// long-lived connection. It is derived per validated request and never
// persisted or mutated after installation.
type Principal struct {
	UserID string
	Role   identity.Role
}

type principalKey struct{}

// WithPrincipal installs p into ctx. Called exactly once per request or
// connection, at the authentication boundary.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the Principal installed by WithPrincipal, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
