package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sennadevos/Chat-Application/internal/identity"
	"github.com/sennadevos/Chat-Application/internal/session"
)

// TokenSource extracts the opaque session token from exactly one designated
// location of an inbound request. Zero or multiple candidates yield ErrNoToken.
type TokenSource func(r *http.Request) (string, error)

// HeaderToken reads the token from a single "Authorization: Bearer" header.
// Used for plain request/response calls.
func HeaderToken(r *http.Request) (string, error) {
	values := r.Header.Values("Authorization")
	if len(values) != 1 {
		return "", ErrNoToken
	}

	const prefix = "Bearer "
	v := strings.TrimSpace(values[0])
	if !strings.HasPrefix(v, prefix) {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(v, prefix))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// QueryToken reads the token from a single "token" query parameter.
// Used for the connection-upgrade path, where headers are not guaranteed.
func QueryToken(r *http.Request) (string, error) {
	values := r.URL.Query()["token"]
	if len(values) != 1 {
		return "", ErrNoToken
	}
	token := strings.TrimSpace(values[0])
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// Authenticator validates tokens against the session registry and resolves
// the user's role. It runs before any handler code; a failure denies the
// request or upgrade at the boundary.
type Authenticator struct {
	log      *slog.Logger
	registry *session.Registry
	users    identity.Finder
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(log *slog.Logger, registry *session.Registry, users identity.Finder) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{log: log, registry: registry, users: users}
}

// Authenticate extracts a token via src, validates it, and resolves a
// Principal. Registry NotFound and Expired both collapse to ErrInvalidToken.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request, src TokenSource) (Principal, error) {
	if err := ctx.Err(); err != nil {
		// Connection closed mid-handshake: abandon without side effects.
		return Principal{}, err
	}

	token, err := src(r)
	if err != nil {
		return Principal{}, err
	}

	userID, err := a.registry.Validate(token)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
			return Principal{}, ErrInvalidToken
		default:
			return Principal{}, err
		}
	}

	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			a.log.Warn("auth.user.missing", "user_id", userID)
			return Principal{}, ErrUserNotFound
		}
		return Principal{}, err
	}

	return Principal{UserID: user.ID, Role: user.Role}, nil
}
