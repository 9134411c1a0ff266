package metadata

import (
	"sync"
	"testing"
	"time"
)

func TestTTLCache_SetGet(t *testing.T) {
	cache := NewTTLCache[string](time.Minute)
	defer cache.Stop()

	cache.Set("1", "box one")

	value, ok := cache.Get("1")
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if value != "box one" {
		t.Errorf("Expected 'box one', got %q", value)
	}

	if _, ok := cache.Get("2"); ok {
		t.Error("Expected missing key")
	}
}

func TestTTLCache_Expiration(t *testing.T) {
	cache := NewTTLCache[int](time.Minute)
	defer cache.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("k", 7)
	if v, ok := cache.Get("k"); !ok || v != 7 {
		t.Fatalf("Expected 7, got %d (ok=%v)", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("k"); ok {
		t.Error("Expected entry to be expired")
	}

	if cache.Len() != 1 {
		t.Errorf("Expected expired entry to remain until sweep, got %d", cache.Len())
	}
	cache.removeExpired()
	if cache.Len() != 0 {
		t.Errorf("Expected sweep to remove expired entry, got %d", cache.Len())
	}
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	cache := NewTTLCache[string](time.Minute)
	defer cache.Stop()

	cache.Set("a", "1")
	cache.Set("b", "2")
	cache.Delete("a")

	if _, ok := cache.Get("a"); ok {
		t.Error("Expected deleted key to be gone")
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d", cache.Len())
	}
}

func TestTTLCache_StopTwice(t *testing.T) {
	cache := NewTTLCache[string](time.Second)
	cache.Stop()
	cache.Stop()
}

func TestTTLCache_Concurrent(t *testing.T) {
	cache := NewTTLCache[int](time.Minute)
	defer cache.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + n))
				cache.Set(key, j)
				cache.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 10 {
		t.Errorf("Expected 10 keys, got %d", cache.Len())
	}
}

func TestSweepInterval(t *testing.T) {
	if got := sweepInterval(10 * time.Millisecond); got != time.Second {
		t.Errorf("Expected floor of 1s, got %v", got)
	}
	if got := sweepInterval(time.Hour); got != time.Minute {
		t.Errorf("Expected cap of 1m, got %v", got)
	}
	if got := sweepInterval(30 * time.Second); got != 30*time.Second {
		t.Errorf("Expected 30s, got %v", got)
	}
}
