package auth

import (
	"net/http"
	"strings"

	"github.com/sennadevos/Chat-Application/internal/identity"
)

// ResourceContext is the resource-level check consulted by the default rule
// for actions that additionally require channel membership. It must be
// evaluated at the moment of the mutating action, never cached.
type ResourceContext interface {
	IsMember(userID string) (bool, error)
}

// Policy encodes the ordered route rules, first match wins:
//
//  1. Preflight (OPTIONS) requests are allowed unconditionally.
//  2. The connection-upgrade path is allowed; the handshake authenticator
//     enforces authentication at upgrade time instead.
//  3. Public endpoints (login, health/status/info, metrics) are allowed.
//  4. User-administration paths require the admin role.
//  5. Everything else requires a principal, plus the resource membership
//     check when a ResourceContext is supplied.
type Policy struct{}

// NewPolicy constructs the route policy.
func NewPolicy() *Policy { return &Policy{} }

// Authorize decides whether the request may proceed.
// A nil return means allow; ErrUnauthenticated, ErrForbidden, or a resource
// error (e.g. channel not found) mean deny.
//
// principal is nil when authentication did not produce one.
func (p *Policy) Authorize(principal *Principal, method, path string, resource ResourceContext) error {
	switch {
	case method == http.MethodOptions:
		return nil

	case isUpgradePath(path):
		return nil

	case isPublicPath(method, path):
		return nil

	case isAdminPath(path):
		if principal == nil {
			return ErrUnauthenticated
		}
		if principal.Role != identity.RoleAdmin {
			return ErrForbidden
		}
		return nil

	default:
		if principal == nil {
			return ErrUnauthenticated
		}
		if resource != nil {
			ok, err := resource.IsMember(principal.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrForbidden
			}
		}
		return nil
	}
}

func isUpgradePath(path string) bool {
	return path == "/ws" || strings.HasPrefix(path, "/ws/")
}

func isPublicPath(method, path string) bool {
	if method == http.MethodPost && strings.HasPrefix(path, "/auth/") {
		return true
	}
	switch path {
	case "/health", "/healthz", "/status", "/info", "/metrics":
		return true
	}
	return false
}

func isAdminPath(path string) bool {
	return path == "/users" || strings.HasPrefix(path, "/users/")
}
