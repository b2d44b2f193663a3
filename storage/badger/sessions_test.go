package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/storage"
)

func TestSessionAppendAndGetAll(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	texts := []string{"first", "second", "third"}
	for i, text := range texts {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msg := &core.Message{Role: role, Content: text, Timestamp: time.Now().UTC()}
		if err := stores.Sessions.AppendMessage(ctx, "session-1", msg); err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}
	}

	all, err := stores.Sessions.GetAllMessages(ctx, "session-1")
	if err != nil {
		t.Fatalf("Failed to get all messages: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(all))
	}
	for i, text := range texts {
		if all[i].Content != text {
			t.Fatalf("Expected message %d to be %q, got %q", i, text, all[i].Content)
		}
	}
}

func TestSessionRecentWindow(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	for _, text := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8"} {
		msg := &core.Message{Role: core.RoleUser, Content: text, Timestamp: time.Now().UTC()}
		if err := stores.Sessions.AppendMessage(ctx, "session-1", msg); err != nil {
			t.Fatalf("Failed to append message: %v", err)
		}
	}

	recent, err := stores.Sessions.GetRecentMessages(ctx, "session-1", 6)
	if err != nil {
		t.Fatalf("Failed to get recent messages: %v", err)
	}
	if len(recent) != 6 {
		t.Fatalf("Expected 6 messages, got %d", len(recent))
	}
	if recent[0].Content != "m3" {
		t.Fatalf("Expected oldest kept message to be m3, got %q", recent[0].Content)
	}
	if recent[5].Content != "m8" {
		t.Fatalf("Expected newest message last, got %q", recent[5].Content)
	}
}

func TestSessionRecentFewerThanLimit(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	msg := &core.Message{Role: core.RoleUser, Content: "only one", Timestamp: time.Now().UTC()}
	if err := stores.Sessions.AppendMessage(ctx, "session-1", msg); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	recent, err := stores.Sessions.GetRecentMessages(ctx, "session-1", 6)
	if err != nil {
		t.Fatalf("Failed to get recent messages: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(recent))
	}
}

func TestSessionIsolation(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	msgA := &core.Message{Role: core.RoleUser, Content: "from a", Timestamp: time.Now().UTC()}
	msgB := &core.Message{Role: core.RoleUser, Content: "from b", Timestamp: time.Now().UTC()}
	if err := stores.Sessions.AppendMessage(ctx, "session-a", msgA); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}
	if err := stores.Sessions.AppendMessage(ctx, "session-b", msgB); err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	got, err := stores.Sessions.GetAllMessages(ctx, "session-a")
	if err != nil {
		t.Fatalf("Failed to get messages: %v", err)
	}
	if len(got) != 1 || got[0].Content != "from a" {
		t.Fatalf("Expected only session-a messages, got %v", got)
	}
}

func TestSummarySingleSlot(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	_, err = stores.Sessions.GetSummary(ctx, "session-1")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for missing summary, got %v", err)
	}

	if err := stores.Sessions.SetSummary(ctx, "session-1", "Patient asked about dosage."); err != nil {
		t.Fatalf("Failed to set summary: %v", err)
	}
	if err := stores.Sessions.SetSummary(ctx, "session-1", "Patient asked about dosage and interactions."); err != nil {
		t.Fatalf("Failed to overwrite summary: %v", err)
	}

	summary, err := stores.Sessions.GetSummary(ctx, "session-1")
	if err != nil {
		t.Fatalf("Failed to get summary: %v", err)
	}
	if summary != "Patient asked about dosage and interactions." {
		t.Fatalf("Expected latest summary to win, got %q", summary)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	bad := &core.Message{Role: core.RoleUser, Content: "", Timestamp: time.Now().UTC()}
	if err := stores.Sessions.AppendMessage(ctx, "session-1", bad); err == nil {
		t.Fatal("Expected error for empty content")
	}

	msg := &core.Message{Role: core.RoleUser, Content: "fine", Timestamp: time.Now().UTC()}
	if err := stores.Sessions.AppendMessage(ctx, "", msg); err == nil {
		t.Fatal("Expected error for empty session ID")
	}
}

func TestSessionIDSeparatorRejected(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	// A session ID carrying the key separator would make "alpha:beta"'s
	// messages land inside "alpha"'s key range.
	msg := &core.Message{Role: core.RoleUser, Content: "leaked", Timestamp: time.Now().UTC()}
	if err := stores.Sessions.AppendMessage(ctx, "alpha:beta", msg); !errors.Is(err, core.ErrInvalidSessionID) {
		t.Fatalf("Expected ErrInvalidSessionID, got %v", err)
	}

	got, err := stores.Sessions.GetRecentMessages(ctx, "alpha", 6)
	if err != nil {
		t.Fatalf("Failed to get messages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Expected no messages in sibling session, got %v", got)
	}
}
