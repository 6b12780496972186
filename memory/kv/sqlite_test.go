package kv_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/evermind-ai/evermind/memory/kv"
)

func TestSQLiteStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, "scope-a", "tenant-1", "key-1", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	value, found, err := store.Get(ctx, "scope-a", "tenant-1", "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected record to exist")
	}
	if string(value) != `{"n":1}` {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestSQLiteStore_MissingRecord(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	_, found, err := store.Get(ctx, "scope-a", "tenant-1", "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected record to be absent")
	}
}

func TestSQLiteStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, "scope-a", "tenant-1", "key-1", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "scope-a", "tenant-1", "key-1", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, _, err := store.Get(ctx, "scope-a", "tenant-1", "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "v2" {
		t.Fatalf("expected v2, got %s", value)
	}
}

func TestSQLiteStore_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	store, err := kv.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, "scope-a", "tenant-1", "key-1", []byte("a")); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, found, _ := store.Get(ctx, "scope-b", "tenant-1", "key-1"); found {
		t.Fatal("record leaked across scopes")
	}
	if _, found, _ := store.Get(ctx, "scope-a", "tenant-2", "key-1"); found {
		t.Fatal("record leaked across tenants")
	}
}

func TestCached_ReadsThroughAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	inner, err := kv.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cached, err := kv.NewCached(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("wrap cache: %v", err)
	}
	defer cached.Close()

	if err := cached.Set(ctx, "scope-a", "tenant-1", "key-1", []byte("cached")); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Durable store has the value regardless of cache state.
	value, found, err := inner.Get(ctx, "scope-a", "tenant-1", "key-1")
	if err != nil || !found {
		t.Fatalf("inner get: found=%v err=%v", found, err)
	}
	if string(value) != "cached" {
		t.Fatalf("unexpected durable value: %s", value)
	}

	value, found, err = cached.Get(ctx, "scope-a", "tenant-1", "key-1")
	if err != nil || !found {
		t.Fatalf("cached get: found=%v err=%v", found, err)
	}
	if string(value) != "cached" {
		t.Fatalf("unexpected cached value: %s", value)
	}
}

func TestCached_SetInvalidatesStaleEntry(t *testing.T) {
	ctx := context.Background()
	inner, err := kv.NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cached, err := kv.NewCached(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("wrap cache: %v", err)
	}
	defer cached.Close()

	if err := cached.Set(ctx, "scope-a", "tenant-1", "key-1", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, _, err := cached.Get(ctx, "scope-a", "tenant-1", "key-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cached.Set(ctx, "scope-a", "tenant-1", "key-1", []byte("v2")); err != nil {
		t.Fatalf("update: %v", err)
	}

	value, found, err := cached.Get(ctx, "scope-a", "tenant-1", "key-1")
	if err != nil || !found {
		t.Fatalf("get after update: found=%v err=%v", found, err)
	}
	if string(value) != "v2" {
		t.Fatalf("stale cache entry served: %s", value)
	}
}
