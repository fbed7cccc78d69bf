// Package membership implements the channel membership relation.
//
// Membership is stored as a single relation (channel id -> member set) and the
// user -> channels view is derived from it by query; the two directions are
// never mutated independently. Mutations and snapshots on one channel are
// serialized by a per-channel lock, so different channels never block each
// other and a snapshot never observes a half-applied mutation.
package membership

import (
	"errors"
	"sort"
	"sync"
)

// ErrChannelNotFound is returned for operations on an unregistered channel id.
var ErrChannelNotFound = errors.New("channel not found")

// Snapshot is an immutable point-in-time copy of a channel's member set.
type Snapshot struct {
	ChannelID string
	members   map[string]struct{}
}

// Contains reports whether userID is part of the snapshot.
func (s Snapshot) Contains(userID string) bool {
	_, ok := s.members[userID]
	return ok
}

// Members returns the member ids in sorted order.
func (s Snapshot) Members() []string {
	out := make([]string, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len reports the snapshot size.
func (s Snapshot) Len() int { return len(s.members) }

// Store holds channel membership in memory.
//
// The channels map is guarded by mu; each channel entry carries its own lock
// for member mutations, so contention is scoped per channel.
type Store struct {
	mu       sync.RWMutex
	channels map[string]*channelEntry
}

type channelEntry struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{channels: make(map[string]*channelEntry)}
}

// Register makes channelID known to the store with an empty member set.
// Registering an existing channel is a no-op.
func (s *Store) Register(channelID string) {
	if channelID == "" {
		return
	}

	s.mu.Lock()
	if _, ok := s.channels[channelID]; !ok {
		s.channels[channelID] = &channelEntry{members: make(map[string]struct{})}
	}
	s.mu.Unlock()
}

// Unregister drops a channel and its member set. Unknown channels are a no-op.
func (s *Store) Unregister(channelID string) {
	s.mu.Lock()
	delete(s.channels, channelID)
	s.mu.Unlock()
}

func (s *Store) entry(channelID string) (*channelEntry, error) {
	s.mu.RLock()
	e, ok := s.channels[channelID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrChannelNotFound
	}
	return e, nil
}

// AddMember adds userID to channelID. Idempotent.
func (s *Store) AddMember(channelID, userID string) error {
	e, err := s.entry(channelID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.members[userID] = struct{}{}
	e.mu.Unlock()
	return nil
}

// RemoveMember removes userID from channelID. Removing a non-member is a no-op.
func (s *Store) RemoveMember(channelID, userID string) error {
	e, err := s.entry(channelID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.members, userID)
	e.mu.Unlock()
	return nil
}

// IsMember reports whether userID is currently a member of channelID.
func (s *Store) IsMember(channelID, userID string) (bool, error) {
	e, err := s.entry(channelID)
	if err != nil {
		return false, err
	}

	e.mu.RLock()
	_, ok := e.members[userID]
	e.mu.RUnlock()
	return ok, nil
}

// Snapshot returns an immutable copy of the channel's member set.
// Later mutations to the live channel never change an already-taken snapshot.
func (s *Store) Snapshot(channelID string) (Snapshot, error) {
	e, err := s.entry(channelID)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.RLock()
	members := make(map[string]struct{}, len(e.members))
	for id := range e.members {
		members[id] = struct{}{}
	}
	e.mu.RUnlock()

	return Snapshot{ChannelID: channelID, members: members}, nil
}

// ChannelsOf derives the reverse view: all channel ids userID belongs to,
// sorted. The result is computed from the relation, not a second collection.
func (s *Store) ChannelsOf(userID string) []string {
	s.mu.RLock()
	entries := make(map[string]*channelEntry, len(s.channels))
	for id, e := range s.channels {
		entries[id] = e
	}
	s.mu.RUnlock()

	var out []string
	for id, e := range entries {
		e.mu.RLock()
		_, ok := e.members[userID]
		e.mu.RUnlock()
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
