package session

import "errors"

var (
	// ErrNotFound is returned when a token is unknown to the registry.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a token exists but its expiry has passed.
	ErrExpired = errors.New("session expired")
)
