package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestLRU_BasicOperations(t *testing.T) {
	c := New(Config[string, int]{MaxSize: 10})

	c.Put("a", 1)
	c.Put("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	var evicted []int
	c := New(Config[int, string]{
		MaxSize: 3,
		OnEvict: func(k int, _ string) { evicted = append(evicted, k) },
	})

	c.Put(1, "one")
	c.Put(2, "two")
	c.Put(3, "three")
	c.Get(1) // 2 is now least recently used
	c.Put(4, "four")

	if _, ok := c.Get(2); ok {
		t.Error("key 2 should have been evicted")
	}
	for _, k := range []int{1, 3, 4} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("key %d should still be cached", k)
		}
	}
	if len(evicted) != 1 || evicted[0] != 2 {
		t.Errorf("evicted = %v, want [2]", evicted)
	}
}

func TestLRU_Update(t *testing.T) {
	c := New(Config[string, int]{MaxSize: 2})
	c.Put("k", 1)
	c.Put("k", 2)
	if v, _ := c.Get("k"); v != 2 {
		t.Errorf("Get(k) = %d, want 2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestLRU_RemoveClear(t *testing.T) {
	c := New(Config[string, int]{})
	c.Put("a", 1)
	c.Put("b", 2)
	c.Remove("a")
	c.Remove("nonexistent")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be removed")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestLRU_Stats(t *testing.T) {
	c := New(Config[int, int]{MaxSize: 1})
	c.Put(1, 1)
	c.Get(1)
	c.Get(2)
	c.Put(2, 2)

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Evictions != 1 || s.Size != 1 || s.MaxSize != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBlobCache_ByteLimit(t *testing.T) {
	c := NewBlobCache(10)

	c.Put(0, make([]byte, 4))
	c.Put(1, make([]byte, 4))
	c.Put(2, make([]byte, 4)) // 12 bytes, evicts key 0

	if _, ok := c.Get(0); ok {
		t.Error("key 0 should have been evicted")
	}
	if s := c.Stats(); s.TotalBytes != 8 || s.MaxBytes != 10 {
		t.Errorf("TotalBytes = %d, MaxBytes = %d; want 8, 10", s.TotalBytes, s.MaxBytes)
	}

	c.Put(3, make([]byte, 11))
	if _, ok := c.Get(3); ok {
		t.Error("oversized value should not be cached")
	}

	c.Put(1, make([]byte, 2))
	if s := c.Stats(); s.TotalBytes != 6 {
		t.Errorf("TotalBytes after update = %d, want 6", s.TotalBytes)
	}
	c.Remove(1)
	if s := c.Stats(); s.TotalBytes != 4 {
		t.Errorf("TotalBytes after remove = %d, want 4", s.TotalBytes)
	}
}

func TestBlobCache_Default(t *testing.T) {
	if got := NewBlobCache(0).Stats().MaxBytes; got != DefaultBlobBytes {
		t.Errorf("MaxBytes = %d, want %d", got, DefaultBlobBytes)
	}
}

func TestNew_NegativeLimits(t *testing.T) {
	c := New(Config[int, int]{MaxSize: -1, MaxBytes: -5})
	for i := 0; i < 100; i++ {
		c.Put(i, i)
	}
	if c.Len() != 100 {
		t.Errorf("Len() = %d, want 100 with unlimited size", c.Len())
	}
}

func TestLRU_Concurrency(t *testing.T) {
	c := New(Config[string, int]{MaxSize: 50})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%60)
				c.Put(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Errorf("Len() = %d exceeds MaxSize", c.Len())
	}
}

func BenchmarkLRU_PutGet(b *testing.B) {
	c := NewBlobCache(1 << 20)
	blob := make([]byte, 512)
	for i := 0; i < b.N; i++ {
		c.Put(i%4096, blob)
		c.Get((i / 2) % 4096)
	}
}
