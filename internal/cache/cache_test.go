package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	var got []string
	ok, err := c.Load(ctx, "grades", &got)
	if err != nil || ok {
		t.Fatalf("Expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	if err := c.Store(ctx, "grades", []string{"5", "6"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	ok, err = c.Load(ctx, "grades", &got)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0] != "5" || got[1] != "6" {
		t.Errorf("Unexpected value %v", got)
	}
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	src := []string{"a"}
	if err := c.Store(ctx, "k", src); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	src[0] = "changed"

	var got []string
	if _, err := c.Load(ctx, "k", &got); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got[0] != "a" {
		t.Errorf("Cache shares memory with caller, got %q", got[0])
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_ = c.Store(ctx, "a", 1)
	_ = c.Store(ctx, "b", 2)
	if err := c.Delete(ctx, "a", "missing"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var n int
	if ok, _ := c.Load(ctx, "a", &n); ok {
		t.Error("Expected a to be deleted")
	}
	if ok, _ := c.Load(ctx, "b", &n); !ok || n != 2 {
		t.Errorf("Expected b to survive, got ok=%v n=%d", ok, n)
	}
}

func TestMemoryCacheTypeMismatch(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_ = c.Store(ctx, "k", "text")

	var n int
	if _, err := c.Load(ctx, "k", &n); err == nil {
		t.Error("Expected decode error for mismatched type")
	}
}

func TestRedisCacheUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	c := NewRedisCache(client, "timetable:", time.Minute)

	var got []string
	if ok, err := c.Load(context.Background(), "grades", &got); err == nil || ok {
		t.Errorf("Expected error from unreachable redis, got ok=%v err=%v", ok, err)
	}
	if err := c.Store(context.Background(), "grades", []string{"5"}); err == nil {
		t.Error("Expected Store to fail")
	}
	if err := c.Delete(context.Background()); err != nil {
		t.Errorf("Delete without keys should not touch redis, got %v", err)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := NewRedisCache(client, "timetable:", time.Minute)

	var got []string
	if ok, err := c.Load(ctx, "grades", &got); err != nil || ok {
		t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
	}

	if err := c.Store(ctx, "grades", []string{"5", "Q1"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !mr.Exists("timetable:grades") {
		t.Fatal("Expected value under the prefixed key")
	}
	if ttl := mr.TTL("timetable:grades"); ttl != time.Minute {
		t.Errorf("Expected 1m ttl, got %v", ttl)
	}

	ok, err := c.Load(ctx, "grades", &got)
	if err != nil || !ok {
		t.Fatalf("Expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0] != "5" || got[1] != "Q1" {
		t.Errorf("Unexpected value %v", got)
	}

	if err := c.Delete(ctx, "grades"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := c.Load(ctx, "grades", &got); ok {
		t.Error("Expected miss after delete")
	}

	mr.FastForward(time.Minute)
	if err := c.Store(ctx, "courses", []int{1}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := c.Load(ctx, "courses", &[]int{}); ok {
		t.Error("Expected entry to expire")
	}
}
