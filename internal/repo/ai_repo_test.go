package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campushub/portal-support/internal/domain"
)

func TestConversationOwnershipAndListing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "Owner", "owner@example.edu", domain.RoleStudent)
	other := seedUser(t, db, "Other", "other@example.edu", domain.RoleStudent)

	conv, err := CreateConversation(db, owner.ID, "Library hours")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if _, err := GetConversation(ctx, db, conv.ID, owner.ID); err != nil {
		t.Fatalf("owner should see the conversation: %v", err)
	}
	if _, err := GetConversation(ctx, db, conv.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign conversation must read as not found, got %v", err)
	}

	list, err := ListConversations(ctx, db, owner.ID, time.Now().Add(-time.Hour))
	if err != nil || len(list) != 1 {
		t.Fatalf("ListConversations: %v, %d rows", err, len(list))
	}
	if list, _ := ListConversations(ctx, db, owner.ID, time.Now().Add(time.Hour)); len(list) != 0 {
		t.Fatalf("window should exclude older conversations, got %d", len(list))
	}
}

func TestMessageOrderingWithinConversation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "Owner", "owner@example.edu", domain.RoleStudent)
	conv, _ := CreateConversation(db, owner.ID, "t")

	texts := []string{"q1", "a1", "q2", "a2"}
	senders := []string{domain.AiSenderUser, domain.AiSenderAssistant, domain.AiSenderUser, domain.AiSenderAssistant}
	for i := range texts {
		if _, err := CreateAiMessage(db, conv.ID, senders[i], texts[i]); err != nil {
			t.Fatalf("CreateAiMessage(%d): %v", i, err)
		}
	}

	msgs, err := ListConversationMessages(ctx, db, conv.ID)
	if err != nil {
		t.Fatalf("ListConversationMessages: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Text != texts[i] || m.Sender != senders[i] {
			t.Fatalf("out of order at %d: %+v", i, m)
		}
	}

	last, err := LastConversationMessage(ctx, db, conv.ID)
	if err != nil || last.Text != "a2" {
		t.Fatalf("LastConversationMessage: %v, %+v", err, last)
	}
}

func TestDateAggregatesAndFirstPrompt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "Owner", "owner@example.edu", domain.RoleStudent)
	conv, _ := CreateConversation(db, owner.ID, "t")

	if _, err := CreateAiMessage(db, conv.ID, domain.AiSenderUser, "where is the library"); err != nil {
		t.Fatalf("CreateAiMessage: %v", err)
	}
	if _, err := CreateAiMessage(db, conv.ID, domain.AiSenderAssistant, "in block A"); err != nil {
		t.Fatalf("CreateAiMessage: %v", err)
	}

	blocks, err := DateAggregates(ctx, db, owner.ID, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DateAggregates: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected one day block, got %d", len(blocks))
	}
	today := time.Now().UTC().Format("2006-01-02")
	if blocks[0].Date != today || blocks[0].Count != 2 {
		t.Fatalf("unexpected block: %+v", blocks[0])
	}
	if blocks[0].FirstAt.IsZero() || blocks[0].LastAt.IsZero() {
		t.Fatalf("aggregate bounds did not survive the aggregate scan: %+v", blocks[0])
	}
	if blocks[0].LastAt.Before(blocks[0].FirstAt) {
		t.Fatalf("aggregate bounds inverted: %+v", blocks[0])
	}
	if blocks[0].FirstAt.UTC().Format("2006-01-02") != today {
		t.Fatalf("first bound on wrong day: %+v", blocks[0])
	}

	first, err := FirstPromptOfDay(ctx, db, owner.ID, today)
	if err != nil {
		t.Fatalf("FirstPromptOfDay: %v", err)
	}
	if first.Text != "where is the library" || first.Sender != domain.AiSenderUser {
		t.Fatalf("unexpected first prompt: %+v", first)
	}

	if _, err := FirstPromptOfDay(ctx, db, owner.ID, "1999-01-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty day should be ErrNotFound, got %v", err)
	}
}

func TestParseSQLiteTime(t *testing.T) {
	cases := []string{
		"2026-08-30T10:15:04.123456789Z",
		"2026-08-30 10:15:04.123456789+00:00",
		"2026-08-30 10:15:04.123",
		"2026-08-30 10:15:04",
	}
	for _, s := range cases {
		got := parseSQLiteTime(s)
		if got.IsZero() {
			t.Fatalf("parseSQLiteTime(%q) = zero", s)
		}
		if got.Format("2006-01-02") != "2026-08-30" {
			t.Fatalf("parseSQLiteTime(%q) = %v", s, got)
		}
	}
	if !parseSQLiteTime("not a time").IsZero() {
		t.Fatalf("garbage input should yield the zero time")
	}
}

func TestDeleteMessagesAndConversationCleanup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "Owner", "owner@example.edu", domain.RoleStudent)
	conv, _ := CreateConversation(db, owner.ID, "t")

	q, _ := CreateAiMessage(db, conv.ID, domain.AiSenderUser, "q")
	a, _ := CreateAiMessage(db, conv.ID, domain.AiSenderAssistant, "a")

	if err := DeleteAiMessages(db, []string{q.ID, a.ID}); err != nil {
		t.Fatalf("DeleteAiMessages: %v", err)
	}
	n, err := CountConversationMessages(db, conv.ID)
	if err != nil || n != 0 {
		t.Fatalf("expected empty conversation, got %d (%v)", n, err)
	}

	if err := DeleteConversation(db, conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := GetConversation(ctx, db, conv.ID, owner.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("conversation should be gone, got %v", err)
	}

	// Deleting nothing is a no-op.
	if err := DeleteAiMessages(db, nil); err != nil {
		t.Fatalf("DeleteAiMessages(nil): %v", err)
	}
}

func TestListMessagesBetween_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := seedUser(t, db, "Owner", "owner@example.edu", domain.RoleStudent)
	other := seedUser(t, db, "Other", "other@example.edu", domain.RoleStudent)

	convA, _ := CreateConversation(db, owner.ID, "a")
	convB, _ := CreateConversation(db, other.ID, "b")
	CreateAiMessage(db, convA.ID, domain.AiSenderUser, "mine")
	CreateAiMessage(db, convB.ID, domain.AiSenderUser, "theirs")

	start := time.Now().UTC().Add(-time.Hour)
	end := time.Now().UTC().Add(time.Hour)
	msgs, err := ListMessagesBetween(ctx, db, owner.ID, start, end)
	if err != nil {
		t.Fatalf("ListMessagesBetween: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "mine" {
		t.Fatalf("expected only the owner's message, got %+v", msgs)
	}
}
