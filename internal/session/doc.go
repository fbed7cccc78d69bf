// Package session implements the server-side session registry.
//
// The registry maps opaque tokens to a user identity and an expiry. It is the
// single authority consulted by the handshake authenticator; tokens are random
// and carry no claims, so a revoked or expired session fails validation
// immediately with no grace window.
//
// Expired entries are purged lazily when touched and, when the registry is
// started with a sweep interval, by a periodic background sweep.
package session
