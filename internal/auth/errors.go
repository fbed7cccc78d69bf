package auth

import "errors"

var (
	// ErrNoToken means the transport-specific token source yielded zero or
	// more than one candidate token.
	ErrNoToken = errors.New("no token")

	// ErrInvalidToken covers unknown and expired tokens. The two are
	// deliberately merged so callers cannot enumerate live sessions.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUserNotFound means the session was valid but the referenced user
	// no longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnauthenticated means a principal is required and none is present.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the principal is authenticated but not authorized
	// for the requested role or resource.
	ErrForbidden = errors.New("forbidden")
)
