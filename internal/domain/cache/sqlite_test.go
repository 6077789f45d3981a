package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteCache_GetPut(t *testing.T) {
	c := openTestSQLite(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(ctx, "comicvine:series:blacksad", []byte(`[1]`), time.Hour)
	c.Put(ctx, "comicvine:series:blacksad", []byte(`[2]`), time.Hour)

	got, ok := c.Get(ctx, "comicvine:series:blacksad")
	if !ok {
		t.Fatal("expected hit")
	}
	if string(got) != `[2]` {
		t.Errorf("expected upserted value, got %s", got)
	}
	n, err := c.Len(ctx)
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestSQLiteCache_Expiry(t *testing.T) {
	c := openTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put(ctx, "short", []byte("a"), time.Minute)
	c.Put(ctx, "long", []byte("b"), time.Hour)

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expected short entry to be expired")
	}
	if _, ok := c.Get(ctx, "long"); !ok {
		t.Error("expected long entry to be live")
	}

	evicted, err := c.EvictExpired(ctx)
	if err != nil {
		t.Fatalf("EvictExpired failed: %v", err)
	}
	if evicted != 1 {
		t.Errorf("expected 1 evicted row, got %d", evicted)
	}
}

func TestSQLiteCache_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	first.Put(ctx, "k", []byte("v"), time.Hour)
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	if got, ok := second.Get(ctx, "k"); !ok || string(got) != "v" {
		t.Errorf("expected persisted value, got %q, %v", got, ok)
	}
}
