package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache("ordering").(*memoryCache)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := c.GenerateKey("charge", "abc")
	if key != "ordering:charge:abc" {
		t.Fatalf("key = %q", key)
	}

	if v, err := c.Get(ctx, key); err != nil || v != "" {
		t.Fatalf("missing key = %q, %v", v, err)
	}

	ok, err := c.SetNX(ctx, key, "pending", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v", ok, err)
	}
	if ok, _ := c.SetNX(ctx, key, "other", time.Minute); ok {
		t.Fatal("SetNX must not overwrite a live key")
	}

	if err := c.Set(ctx, key, []byte(`{"id":"1"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Get(ctx, key); v != `{"id":"1"}` {
		t.Fatalf("value = %q", v)
	}

	now = now.Add(2 * time.Minute)
	if v, _ := c.Get(ctx, key); v != "" {
		t.Fatalf("expired value still returned: %q", v)
	}
	if ok, _ := c.SetNX(ctx, key, "again", 0); !ok {
		t.Fatal("SetNX must succeed once the key expired")
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Get(ctx, key); v != "" {
		t.Fatalf("deleted value still returned: %q", v)
	}
}
