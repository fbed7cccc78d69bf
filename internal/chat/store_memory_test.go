package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStore_SaveAssignsIDAndTime(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveChannel(ctx, Channel{ID: "ch-1", Name: "general", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("save channel: %v", err)
	}

	saved, err := s.SaveMessage(ctx, Message{ChannelID: "ch-1", AuthorID: "u-1", Content: "hello"})
	if err != nil {
		t.Fatalf("save message: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("expected assigned id and timestamp, got %+v", saved)
	}
}

func TestMemoryStore_SaveUnknownChannel(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()

	_, err := s.SaveMessage(context.Background(), Message{ChannelID: "missing", AuthorID: "u-1", Content: "x"})
	if !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestMemoryStore_FindByChannelPaging(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveChannel(ctx, Channel{ID: "ch-1", Name: "general"}); err != nil {
		t.Fatalf("save channel: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		_, err := s.SaveMessage(ctx, Message{
			ChannelID: "ch-1",
			AuthorID:  "u-1",
			Content:   fmt.Sprintf("msg-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("save message %d: %v", i, err)
		}
	}

	page0, err := s.FindByChannel(ctx, "ch-1", Page{Number: 0, Size: 3})
	if err != nil {
		t.Fatalf("page 0: %v", err)
	}
	if len(page0.Messages) != 3 || page0.Total != 7 || !page0.HasMore {
		t.Fatalf("page 0 mismatch: len=%d total=%d hasMore=%v", len(page0.Messages), page0.Total, page0.HasMore)
	}
	if page0.Messages[0].Content != "msg-0" {
		t.Fatalf("expected ascending order, first=%q", page0.Messages[0].Content)
	}

	page2, err := s.FindByChannel(ctx, "ch-1", Page{Number: 2, Size: 3})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Messages) != 1 || page2.HasMore {
		t.Fatalf("page 2 mismatch: len=%d hasMore=%v", len(page2.Messages), page2.HasMore)
	}

	beyond, err := s.FindByChannel(ctx, "ch-1", Page{Number: 10, Size: 3})
	if err != nil {
		t.Fatalf("page 10: %v", err)
	}
	if len(beyond.Messages) != 0 || beyond.Total != 7 {
		t.Fatalf("out-of-range page mismatch: %+v", beyond)
	}

	if _, err := s.FindByChannel(ctx, "missing", Page{}); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestMemoryStore_MembershipRelation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SaveChannel(ctx, Channel{ID: "ch-1", Name: "general"}); err != nil {
		t.Fatalf("save channel: %v", err)
	}
	if err := s.AddMember(ctx, "ch-1", "u-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddMember(ctx, "ch-1", "u-1"); err != nil {
		t.Fatalf("idempotent add: %v", err)
	}
	if err := s.AddMember(ctx, "ch-1", "u-2"); err != nil {
		t.Fatalf("add: %v", err)
	}

	members, err := s.ListMembers(ctx, "ch-1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 || members[0] != "u-1" || members[1] != "u-2" {
		t.Fatalf("members mismatch: %v", members)
	}

	rels, err := s.ListMemberships(ctx)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("expected 2 relation rows, got %v", rels)
	}

	if err := s.RemoveMember(ctx, "ch-1", "u-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveMember(ctx, "ch-1", "u-1"); err != nil {
		t.Fatalf("idempotent remove: %v", err)
	}

	if err := s.AddMember(ctx, "missing", "u-1"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}
