package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreBasicOperations(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "mindmap:a", `{"id":"a"}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "mindmap:a")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if value != `{"id":"a"}` {
		t.Errorf("unexpected value: %q", value)
	}

	if err := store.Delete(ctx, "mindmap:a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "mindmap:a"); ok {
		t.Error("expected miss after delete")
	}

	// Deleting an absent key is not an error.
	if err := store.Delete(ctx, "mindmap:missing"); err != nil {
		t.Errorf("delete of absent key must be a no-op, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Set(ctx, "short", "v", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := store.Get(ctx, "short"); ok {
		t.Error("expected entry to expire")
	}

	keys, err := store.Keys(ctx, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 {
		t.Errorf("expired keys must not be listed, got %v", keys)
	}
}

func TestMemoryStoreKeysPattern(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"mindmap:1", "mindmap:2", "setting:registration"} {
		if err := store.Set(ctx, key, "v", 0); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := store.Keys(ctx, "mindmap:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 mindmap keys, got %v", keys)
	}

	all, err := store.Keys(ctx, "*")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 keys, got %v", all)
	}
}

func TestMemoryStoreFlushAll(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "a", "1", 0)
	_ = store.Set(ctx, "b", "2", 0)

	if err := store.FlushAll(ctx); err != nil {
		t.Fatal(err)
	}

	keys, _ := store.Keys(ctx, "*")
	if len(keys) != 0 {
		t.Errorf("expected empty store after flush, got %v", keys)
	}
}

func TestGetJSONTreatsFailuresAsMiss(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var out map[string]interface{}
	if GetJSON(ctx, store, "absent", &out) {
		t.Error("miss must not report a hit")
	}

	_ = store.Set(ctx, "corrupt", "{not json", 0)
	if GetJSON(ctx, store, "corrupt", &out) {
		t.Error("undecodable entry must degrade to a miss")
	}

	if err := SetJSON(ctx, store, "good", map[string]interface{}{"x": 1}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if !GetJSON(ctx, store, "good", &out) {
		t.Fatal("expected hit")
	}
	if got, _ := out["x"].(float64); got != 1 {
		t.Errorf("unexpected decode: %v", out)
	}
}
