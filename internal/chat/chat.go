// Package chat defines the message and channel persistence collaborators.
//
// These are external dependencies of the real-time core: the fan-out path
// consumes an already-persisted message and never reaches back into these
// stores.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrChannelNotFound is returned when a referenced channel does not exist.
var ErrChannelNotFound = errors.New("channel not found")

// Channel is a named message room.
type Channel struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Message is an immutable channel message. It is created only after
// authorization confirmed the author's membership.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Page is a paging request for message history.
type Page struct {
	Number int // zero-based
	Size   int
}

// MessagePage is one window of a channel's history, ascending by id
// (ULIDs sort in creation order).
type MessagePage struct {
	Messages []Message
	Total    int
	HasMore  bool
}

// Membership is one (channel, user) relation row, used to hydrate the live
// membership store at startup.
type Membership struct {
	ChannelID string
	UserID    string
}

// MessageStore persists and pages messages.
type MessageStore interface {
	// SaveMessage persists a message, assigning ID and CreatedAt when unset,
	// and returns the persisted value.
	SaveMessage(ctx context.Context, m Message) (Message, error)

	// FindByChannel returns one page of a channel's messages in ascending
	// id order. Unknown channels fail with ErrChannelNotFound.
	FindByChannel(ctx context.Context, channelID string, page Page) (MessagePage, error)
}

// ChannelStore persists channels and their member relation.
type ChannelStore interface {
	FindByID(ctx context.Context, id string) (Channel, error)
	SaveChannel(ctx context.Context, c Channel) error

	// AddMember/RemoveMember are idempotent relation writes.
	AddMember(ctx context.Context, channelID, userID string) error
	RemoveMember(ctx context.Context, channelID, userID string) error
	ListMembers(ctx context.Context, channelID string) ([]string, error)

	// ListChannels and ListMemberships exist for startup hydration of the
	// live membership store.
	ListChannels(ctx context.Context) ([]Channel, error)
	ListMemberships(ctx context.Context) ([]Membership, error)
}
