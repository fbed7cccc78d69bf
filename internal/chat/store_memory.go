package chat

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sennadevos/Chat-Application/internal/ids"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	// Bound memory in dev mode to avoid unbounded growth.
	memMaxMessagesPerChannel = 10_000
)

// MemoryStore is the in-memory persistence fallback used when no database is
// configured. It implements both MessageStore and ChannelStore.
type MemoryStore struct {
	mu       sync.Mutex
	channels map[string]*memChannel
}

type memChannel struct {
	channel Channel
	members map[string]struct{}
	msgs    []Message // ordered by id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{channels: make(map[string]*memChannel)}
}

// SaveMessage persists a message, assigning ID and CreatedAt when unset.
func (s *MemoryStore) SaveMessage(ctx context.Context, m Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.ID == "" {
		id, err := ids.NewULID(m.CreatedAt)
		if err != nil {
			return Message{}, err
		}
		m.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[m.ChannelID]
	if !ok {
		return Message{}, ErrChannelNotFound
	}

	c.msgs = append(c.msgs, m)
	if len(c.msgs) > memMaxMessagesPerChannel {
		c.msgs = c.msgs[len(c.msgs)-memMaxMessagesPerChannel:]
	}
	return m, nil
}

// FindByChannel returns one page of messages in ascending id order.
func (s *MemoryStore) FindByChannel(ctx context.Context, channelID string, page Page) (MessagePage, error) {
	if err := ctx.Err(); err != nil {
		return MessagePage{}, err
	}

	size := page.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	number := page.Number
	if number < 0 {
		number = 0
	}

	s.mu.Lock()
	c, ok := s.channels[channelID]
	var snap []Message
	if ok {
		snap = append([]Message(nil), c.msgs...)
	}
	s.mu.Unlock()

	if !ok {
		return MessagePage{}, ErrChannelNotFound
	}

	// Ensure ordering defensively.
	sort.Slice(snap, func(i, j int) bool { return snap[i].ID < snap[j].ID })

	total := len(snap)
	start := number * size
	if start >= total {
		return MessagePage{Messages: nil, Total: total, HasMore: false}, nil
	}
	end := start + size
	if end > total {
		end = total
	}

	return MessagePage{
		Messages: snap[start:end],
		Total:    total,
		HasMore:  end < total,
	}, nil
}

// FindByID resolves a channel by id.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return Channel{}, err
	}

	s.mu.Lock()
	c, ok := s.channels[id]
	s.mu.Unlock()

	if !ok {
		return Channel{}, ErrChannelNotFound
	}
	return c.channel, nil
}

// SaveChannel stores a channel row, creating its member relation when new.
func (s *MemoryStore) SaveChannel(ctx context.Context, c Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(c.ID) == "" {
		return ErrChannelNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.channels[c.ID]; ok {
		existing.channel = c
		return nil
	}
	s.channels[c.ID] = &memChannel{
		channel: c,
		members: make(map[string]struct{}),
	}
	return nil
}

// AddMember adds the relation row. Idempotent.
func (s *MemoryStore) AddMember(ctx context.Context, channelID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	c.members[userID] = struct{}{}
	return nil
}

// RemoveMember removes the relation row. Idempotent.
func (s *MemoryStore) RemoveMember(ctx context.Context, channelID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	delete(c.members, userID)
	return nil
}

// ListMembers returns the member ids of a channel, sorted.
func (s *MemoryStore) ListMembers(ctx context.Context, channelID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	c, ok := s.channels[channelID]
	var out []string
	if ok {
		for id := range c.members {
			out = append(out, id)
		}
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrChannelNotFound
	}
	sort.Strings(out)
	return out, nil
}

// ListChannels returns all channels ordered by id.
func (s *MemoryStore) ListChannels(ctx context.Context) ([]Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c.channel)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListMemberships returns every (channel, user) relation row.
func (s *MemoryStore) ListMemberships(ctx context.Context) ([]Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	var out []Membership
	for chID, c := range s.channels {
		for uID := range c.members {
			out = append(out, Membership{ChannelID: chID, UserID: uID})
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ChannelID != out[j].ChannelID {
			return out[i].ChannelID < out[j].ChannelID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
