package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is the in-memory user store used when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]User
	byName map[string]string // username -> id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]User),
		byName: make(map[string]string),
	}
}

// CreateUser stores a user. Usernames are unique across the store.
func (s *MemoryStore) CreateUser(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(u.ID) == "" {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Username != "" {
		if existing, ok := s.byName[u.Username]; ok && existing != u.ID {
			return ErrUsernameTaken
		}
	}
	s.byID[u.ID] = u
	if u.Username != "" {
		s.byName[u.Username] = u.ID
	}
	return nil
}

// FindUserByID resolves a user by id.
func (s *MemoryStore) FindUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	u, ok := s.byID[id]
	s.mu.RUnlock()

	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// FindUserByUsername resolves a user by username.
func (s *MemoryStore) FindUserByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	id, ok := s.byName[username]
	var u User
	if ok {
		u = s.byID[id]
	}
	s.mu.RUnlock()

	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
