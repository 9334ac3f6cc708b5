package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/quillworks/quill/internal/storage"
)

func testStores(t *testing.T) (*ConversationStore, *MessageStore) {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "quill.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewConversationStore(db), NewMessageStore(db)
}

func TestConversationCreateAndGet(t *testing.T) {
	convs, _ := testStores(t)
	ctx := context.Background()

	created, err := convs.Create(ctx, "Fix the intro", "chat")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	got, err := convs.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Fix the intro" || got.Surface != "chat" {
		t.Fatalf("got %#v", got)
	}
}

func TestConversationGetMissing(t *testing.T) {
	convs, _ := testStores(t)
	if _, err := convs.GetByID(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestConversationListOrder(t *testing.T) {
	convs, _ := testStores(t)
	ctx := context.Background()

	a, _ := convs.Create(ctx, "first", "chat")
	b, _ := convs.Create(ctx, "second", "agent")

	// Touching the older conversation moves it to the front.
	if err := convs.Touch(ctx, a.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	list, err := convs.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("unexpected order: %v, %v", list[0].Title, list[1].Title)
	}
}

func TestMessageAppendAndList(t *testing.T) {
	convs, msgs := testStores(t)
	ctx := context.Background()

	conv, _ := convs.Create(ctx, "t", "chat")
	if _, err := msgs.Append(ctx, conv.ID, RoleUser, "hello", ""); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if _, err := msgs.Append(ctx, conv.ID, RoleAssistant, "partial reply", "aborted"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	list, err := msgs.ListByConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(list))
	}
	if list[0].Role != RoleUser || list[0].Terminal != "" {
		t.Fatalf("user message: %#v", list[0])
	}
	if list[1].Role != RoleAssistant || list[1].Terminal != "aborted" {
		t.Fatalf("assistant message: %#v", list[1])
	}
}

func TestDeleteCascadesMessages(t *testing.T) {
	convs, msgs := testStores(t)
	ctx := context.Background()

	conv, _ := convs.Create(ctx, "t", "chat")
	msgs.Append(ctx, conv.ID, RoleUser, "hello", "")

	if err := convs.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := convs.GetByID(ctx, conv.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("conversation survived delete: %v", err)
	}
	list, err := msgs.ListByConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("messages survived cascade: %d", len(list))
	}
}
