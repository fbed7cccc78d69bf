// Package identity holds the canonical user model and the lookup boundary
// consumed by the authenticator and the HTTP API.
package identity

import (
	"context"
	"errors"
	"time"
)

// Role is a user's authorization role.
type Role string

const (
	// RoleMember is the default role for registered users.
	RoleMember Role = "member"
	// RoleAdmin grants access to user-administration routes.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleAdmin
}

// User is the canonical security principal source.
type User struct {
	ID       string
	Username string
	Role     Role

	// PasswordHash is the PHC-encoded Argon2id hash. Never serialized outward.
	PasswordHash string

	CreatedAt time.Time
}

// ErrNotFound is returned when a referenced user does not exist.
var ErrNotFound = errors.New("user not found")

// ErrUsernameTaken is returned by CreateUser when the username is already in use.
var ErrUsernameTaken = errors.New("username taken")

// Finder resolves users by id. It is the lookup the handshake authenticator
// depends on; a valid session referencing a deleted user must fail there.
type Finder interface {
	FindUserByID(ctx context.Context, id string) (User, error)
}

// Store is the full user persistence boundary.
type Store interface {
	Finder

	FindUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, u User) error
	ListUsers(ctx context.Context) ([]User, error)
}
