package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStoreAppendOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	msgs := []Message{
		NewMessage(RoleUser, "what is a stage?", ""),
		NewMessage(RoleAssistant, "A stage is a place for files.", ""),
		NewMessage(RoleUser, "internal or external?", ""),
	}
	for _, m := range msgs {
		if err := store.Append(ctx, id, m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := store.History(ctx, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length %d, want 3", len(history))
	}
	for i, m := range msgs {
		if history[i].Content != m.Content || history[i].Role != m.Role {
			t.Errorf("entry %d: got %+v, want %+v", i, history[i], m)
		}
	}
}

func TestMemoryStoreClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()
	other := uuid.New()

	store.Append(ctx, id, NewMessage(RoleUser, "hello", ""))
	store.Append(ctx, other, NewMessage(RoleUser, "unrelated", ""))

	if err := store.Clear(ctx, id); err != nil {
		t.Fatalf("clear: %v", err)
	}

	history, _ := store.History(ctx, id)
	if len(history) != 0 {
		t.Errorf("cleared session still has %d messages", len(history))
	}
	otherHistory, _ := store.History(ctx, other)
	if len(otherHistory) != 1 {
		t.Errorf("clear leaked into another session: %d messages", len(otherHistory))
	}
}

func TestMemoryStoreIsolatesReturnedSlice(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	store.Append(ctx, id, NewMessage(RoleUser, "original", ""))
	history, _ := store.History(ctx, id)
	history[0].Content = "mutated"

	again, _ := store.History(ctx, id)
	if again[0].Content != "original" {
		t.Error("History returned a slice aliasing internal state")
	}
}
