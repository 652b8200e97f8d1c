package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type sample struct {
	Phase      string  `json:"phase"`
	Confidence float64 `json:"confidence"`
}

func TestMemoryCacheRoundTripsStructs(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "phase:list", []sample{{"DEFECT", 0.84}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got []sample
	if err := c.Get(ctx, "phase:list", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Phase != "DEFECT" || got[0].Confidence != 0.84 {
		t.Fatalf("unexpected %v", got)
	}
}

func TestMemoryCacheMissAndExpiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	var s string
	if err := c.Get(ctx, "nope", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	_ = c.Set(ctx, "short", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if err := c.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired miss, got %v", err)
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	ok, _ := c.TryLock(ctx, "lock:a", "t1", time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	ok, _ = c.TryLock(ctx, "lock:a", "t2", time.Minute)
	if ok {
		t.Fatalf("second lock should fail")
	}
	if released, _ := c.Unlock(ctx, "lock:a", "t2"); released {
		t.Fatalf("unlock with a foreign token must not release")
	}
	if released, _ := c.Unlock(ctx, "lock:a", "t1"); !released {
		t.Fatalf("owner unlock should release")
	}
	ok, _ = c.TryLock(ctx, "lock:a", "t2", time.Minute)
	if !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "phase:list", "a", 0)
	_ = c.Set(ctx, "phase:NVDA", "b", 0)
	_ = c.Set(ctx, "lock:x", "c", 0)
	if err := c.DeleteByPattern(ctx, BuildPattern("phase:")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := c.Exists(ctx, "phase:list", "phase:NVDA"); ok {
		t.Fatalf("phase keys should be gone")
	}
	if ok, _ := c.Exists(ctx, "lock:x"); !ok {
		t.Fatalf("unrelated key should survive")
	}
}

func TestMemoryCacheIncrementAndEviction(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := c.Increment(ctx, "counter")
		if err != nil || n != int64(i) {
			t.Fatalf("increment %d: %v %v", i, n, err)
		}
	}
	_ = c.Set(ctx, "a", "1", 0)
	_ = c.Set(ctx, "b", "2", 0)
	if ok, _ := c.Exists(ctx, "counter"); ok {
		t.Fatalf("least recently used key should be evicted")
	}
}
