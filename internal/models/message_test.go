package models

import (
	"testing"
	"time"
)

func TestDirectionFor(t *testing.T) {
	m := Message{SenderID: "alice"}
	if got := m.DirectionFor("alice"); got != DirectionOutgoing {
		t.Errorf("sender viewing own message: got %q", got)
	}
	if got := m.DirectionFor("bob"); got != DirectionIncoming {
		t.Errorf("peer viewing message: got %q", got)
	}
}

func TestSortByCreationStable(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "c", CreatedAt: base.Add(2 * time.Second)},
		{ID: "a", CreatedAt: base},
		{ID: "b2", CreatedAt: base.Add(time.Second)},
		{ID: "b1", CreatedAt: base.Add(time.Second)},
	}
	SortByCreation(msgs)
	want := []string{"a", "b1", "b2", "c"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d: got %q, want %q", i, msgs[i].ID, id)
		}
	}
}

func TestPositionsFor(t *testing.T) {
	msgs := []Message{
		{ID: "1", SenderID: "alice"},
		{ID: "2", SenderID: "alice"},
		{ID: "3", SenderID: "alice"},
		{ID: "4", SenderID: "bob"},
		{ID: "5", SenderID: "alice"},
	}
	got := PositionsFor(msgs)
	want := []Position{PositionFirst, PositionNormal, PositionLast, PositionSingle, PositionSingle}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPositionsForEmpty(t *testing.T) {
	if got := PositionsFor(nil); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestConversationNormalizeDefaults(t *testing.T) {
	var c Conversation
	c.Normalize()
	if c.Members == nil {
		t.Error("members not defaulted")
	}
	if !c.CreatedAt.Equal(DefaultTimestamp) || !c.UpdatedAt.Equal(DefaultTimestamp) {
		t.Error("timestamps not defaulted")
	}
	if c.LastMessage.Type != "text" {
		t.Errorf("last message type not defaulted: %q", c.LastMessage.Type)
	}
	if c.CreatedBy != "" {
		t.Errorf("created_by should default to empty, got %q", c.CreatedBy)
	}
}

func TestConversationHelpers(t *testing.T) {
	c := Conversation{Members: []string{"alice", "bob"}}
	if !c.HasMember("alice") || c.HasMember("carol") {
		t.Error("HasMember wrong")
	}
	if c.Other("alice") != "bob" || c.Other("bob") != "alice" {
		t.Error("Other wrong")
	}
}

func TestPrivateUserNormalize(t *testing.T) {
	var p PrivateUser
	p.Normalize()
	if p.Notifications == nil || p.Chats == nil {
		t.Error("slices not defaulted")
	}
	p.Chats = []string{"alice+bob"}
	if !p.HasChat("alice+bob") || p.HasChat("alice+carol") {
		t.Error("HasChat wrong")
	}
}
