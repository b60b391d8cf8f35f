package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := NewMemoryCache(1024)

	key := "chunk-key"
	value := []byte("pcm samples")

	if err := cache.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// The cache owns a copy.
	value[0] = 'X'

	retrieved, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed: key not found")
	}
	if string(retrieved) != "pcm samples" {
		t.Errorf("Retrieved value mismatch: got %s", retrieved)
	}
	if !cache.Contains(key) {
		t.Error("Contains returned false for existing key")
	}

	cache.Delete(key)
	if cache.Contains(key) {
		t.Error("Key still exists after delete")
	}
	if s := cache.Stats(); s.Size != 0 || s.Items != 0 {
		t.Errorf("Stats after delete: got %+v", s)
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	cache := NewMemoryCache(30)

	cache.Put("a", make([]byte, 10))
	cache.Put("b", make([]byte, 10))
	cache.Put("c", make([]byte, 10))

	// Touch a so b becomes the oldest.
	cache.Get("a")
	cache.Put("d", make([]byte, 10))

	if cache.Contains("b") {
		t.Error("least recently used entry was not evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if !cache.Contains(k) {
			t.Errorf("entry %s was evicted", k)
		}
	}
	if s := cache.Stats(); s.Evictions != 1 || s.Size != 30 {
		t.Errorf("Stats: got %+v, want 1 eviction and 30 bytes", s)
	}
}

func TestMemoryCache_ItemTooLarge(t *testing.T) {
	cache := NewMemoryCache(10)

	if err := cache.Put("big", make([]byte, 11)); err != ErrItemTooLarge {
		t.Errorf("got %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryCache_UpdateExisting(t *testing.T) {
	cache := NewMemoryCache(100)

	cache.Put("k", make([]byte, 40))
	cache.Put("k", make([]byte, 20))

	if s := cache.Stats(); s.Size != 20 || s.Items != 1 {
		t.Errorf("Stats after update: got %+v", s)
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(100)
	cache.Put("k", []byte("v"))

	cache.Get("k")
	cache.Get("k")
	cache.Get("missing")

	s := cache.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Hits/Misses: got %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if got, want := s.HitRate(), 2.0/3.0; got != want {
		t.Errorf("HitRate: got %v, want %v", got, want)
	}
	if (Stats{}).HitRate() != 0 {
		t.Error("HitRate of empty stats should be 0")
	}
}

func TestMemoryCache_Prune(t *testing.T) {
	cache := NewMemoryCache(100)
	cache.Put("old", []byte("v"))
	time.Sleep(20 * time.Millisecond)
	cache.Put("new", []byte("v"))

	if n := cache.Prune(10 * time.Millisecond); n != 1 {
		t.Errorf("Prune removed %d entries, want 1", n)
	}
	if cache.Contains("old") || !cache.Contains("new") {
		t.Error("Prune removed the wrong entry")
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(100)
	cache.Put("a", []byte("1"))
	cache.Put("b", []byte("2"))

	cache.Clear()
	if s := cache.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("Stats after Clear: got %+v", s)
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("entry survived Clear")
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(1 << 20)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("key-%d-%d", g, i%10)
				cache.Put(key, make([]byte, 64))
				cache.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if s := cache.Stats(); s.Items != 80 || s.Size != 80*64 {
		t.Errorf("Stats: got %+v, want 80 items", s)
	}
}
