package storage

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/youruser/gemchat/internal/chat"
)

func testSnapshot() Snapshot {
	c := chat.Chat{
		ID:     "c1",
		Name:   "First",
		Active: true,
		Model:  chat.ModelRef{Key: "gemini-2.0-flash", Name: "2.0 Flash"},
	}
	c = chat.AppendMessage(c, "hello", chat.SenderSelf, "m1")
	c = chat.AppendMessage(c, "hi there", chat.SenderAI, "m2")
	c = chat.SetMessageTokenCount(c, "m2", 7)

	return Snapshot{
		Chats:   []chat.Chat{c},
		Options: map[string]string{"numRememberPreviousMessages": "5", "temperature": "0.9"},
	}
}

func kvRoundTrip(t *testing.T, kv KV) {
	t.Helper()

	if _, ok, err := kv.Get("chats"); err != nil || ok {
		t.Fatalf("Get on empty store = ok=%v err=%v, want absent", ok, err)
	}

	if err := kv.Set("chats", `[{"id":"x"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, ok, err := kv.Get("chats")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if value != `[{"id":"x"}]` {
		t.Errorf("value = %q, want %q", value, `[{"id":"x"}]`)
	}

	// Overwrite wins
	if err := kv.Set("chats", `[]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, _, _ = kv.Get("chats")
	if value != `[]` {
		t.Errorf("value after overwrite = %q, want %q", value, `[]`)
	}

	if err := kv.Delete("chats"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := kv.Get("chats"); ok {
		t.Error("key should be absent after delete")
	}
	if err := kv.Delete("chats"); err != nil {
		t.Errorf("deleting absent key should not error: %v", err)
	}
}

func TestFileKV(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}
	defer kv.Close()
	kvRoundTrip(t, kv)
}

func TestSQLiteKV(t *testing.T) {
	kv, err := NewSQLiteKV(filepath.Join(t.TempDir(), "gemchat.db"))
	if err != nil {
		t.Fatalf("NewSQLiteKV failed: %v", err)
	}
	defer kv.Close()
	kvRoundTrip(t, kv)
}

func TestAdapterRoundTrip(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV failed: %v", err)
	}
	adapter := NewAdapter(kv)

	snap := testSnapshot()
	if err := adapter.SaveChats(snap.Chats); err != nil {
		t.Fatalf("SaveChats failed: %v", err)
	}
	if err := adapter.SaveOptions(snap.Options); err != nil {
		t.Fatalf("SaveOptions failed: %v", err)
	}

	loaded, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(loaded.Chats, snap.Chats) {
		t.Errorf("chats = %+v, want %+v", loaded.Chats, snap.Chats)
	}
	if !reflect.DeepEqual(loaded.Options, snap.Options) {
		t.Errorf("options = %+v, want %+v", loaded.Options, snap.Options)
	}
}

func TestAdapterLoadEmpty(t *testing.T) {
	kv, _ := NewFileKV(t.TempDir())
	adapter := NewAdapter(kv)

	snap, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snap.Chats) != 0 {
		t.Errorf("expected no chats, got %d", len(snap.Chats))
	}
	if len(snap.Options) != 0 {
		t.Errorf("expected no options, got %d", len(snap.Options))
	}
}

func TestAdapterClearChats(t *testing.T) {
	kv, _ := NewFileKV(t.TempDir())
	adapter := NewAdapter(kv)

	snap := testSnapshot()
	adapter.SaveChats(snap.Chats)
	adapter.SaveOptions(snap.Options)

	if err := adapter.ClearChats(); err != nil {
		t.Fatalf("ClearChats failed: %v", err)
	}

	loaded, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Chats) != 0 {
		t.Error("chats should be gone after ClearChats")
	}
	if len(loaded.Options) == 0 {
		t.Error("options should survive ClearChats")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	snap := testSnapshot()

	data, err := Export(snap)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	restored, err := Import(data)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !reflect.DeepEqual(restored.Chats, snap.Chats) {
		t.Errorf("chats = %+v, want %+v", restored.Chats, snap.Chats)
	}
	if !reflect.DeepEqual(restored.Options, snap.Options) {
		t.Errorf("options = %+v, want %+v", restored.Options, snap.Options)
	}
}

func TestImportRejectsWrongSchema(t *testing.T) {
	_, err := Import([]byte(`{"id":"somethingElse","chats":[],"options":{}}`))
	if !errors.Is(err, ErrBadSchema) {
		t.Errorf("expected ErrBadSchema, got %v", err)
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := Import([]byte(`not json at all`))
	if !errors.Is(err, ErrBadPayload) {
		t.Errorf("expected ErrBadPayload, got %v", err)
	}
}
