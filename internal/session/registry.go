package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"time"
)

const (
	// defaultTTL applies when the registry is constructed with a non-positive TTL.
	defaultTTL = 24 * time.Hour

	// tokenBytes is the entropy of an opaque session token.
	// 32 random bytes, URL-safe base64 without padding (43 chars).
	tokenBytes = 32
)

// Registry is the process-wide token -> session authority.
//
// Concurrency guarantees:
//   - Issue/Validate/Revoke are safe under concurrent use.
//   - A Validate racing a Revoke observes either the pre- or post-state,
//     never a partially applied entry (entries are stored by value).
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]entry
}

type entry struct {
	userID    string
	expiresAt time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the registry time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs a Registry with the given session TTL.
func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	r := &Registry{
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Issue mints a new opaque token for userID and stores it with the registry TTL.
// The token is unique across live sessions.
func (r *Registry) Issue(userID string) (token string, expiresAt time.Time, err error) {
	now := r.now()
	exp := now.Add(r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		token, err = newOpaqueToken()
		if err != nil {
			return "", time.Time{}, err
		}
		// Collision odds are negligible at 256 bits, but uniqueness across
		// live sessions is a contract, so check anyway.
		if _, exists := r.sessions[token]; !exists {
			break
		}
	}

	r.sessions[token] = entry{userID: userID, expiresAt: exp}
	return token, exp, nil
}

// Validate resolves a token to its user id.
// Unknown tokens return ErrNotFound. Tokens at or past their expiry return
// ErrExpired and are purged; an entry expired a nanosecond ago already fails.
func (r *Registry) Validate(token string) (userID string, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNotFound
	}

	r.mu.RLock()
	e, ok := r.sessions[token]
	r.mu.RUnlock()

	if !ok {
		return "", ErrNotFound
	}
	if !e.expiresAt.After(r.now()) {
		// Lazy purge on access.
		r.mu.Lock()
		if cur, ok := r.sessions[token]; ok && !cur.expiresAt.After(r.now()) {
			delete(r.sessions, token)
		}
		r.mu.Unlock()
		return "", ErrExpired
	}
	return e.userID, nil
}

// Revoke removes a token. Revoking an unknown token is a no-op.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Len reports the number of stored sessions, including not-yet-purged
// expired entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes all expired entries and reports how many were purged.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for tok, e := range r.sessions {
		if !e.expiresAt.After(now) {
			delete(r.sessions, tok)
			purged++
		}
	}
	return purged
}

// RunSweeper periodically purges expired entries until ctx is done.
// Intended to be run as a goroutine owned by the app runtime.
func (r *Registry) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func newOpaqueToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// URL-safe, no padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
