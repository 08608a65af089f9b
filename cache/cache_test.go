package cache

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := NewStore[string, int](StringHasher)
	if s == nil {
		t.Fatal("NewStore returned nil")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d entries", s.Len())
	}
}

func TestStoreGetOrCreate(t *testing.T) {
	s := NewStore[string, int](StringHasher)
	createCalled := 0

	val, err := s.GetOrCreate("key1", func() (int, error) {
		createCalled++
		return 100, nil
	})
	if err != nil || val != 100 {
		t.Fatalf("expected 100, got %d (err %v)", val, err)
	}

	val, err = s.GetOrCreate("key1", func() (int, error) {
		createCalled++
		return 200, nil
	})
	if err != nil || val != 100 {
		t.Errorf("expected 100 (cached), got %d (err %v)", val, err)
	}
	if createCalled != 1 {
		t.Errorf("expected create called once, got %d", createCalled)
	}
}

func TestStoreErrorIsNotStored(t *testing.T) {
	s := NewStore[string, int](StringHasher)
	boom := errors.New("boom")

	if _, err := s.GetOrCreate("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := s.Get("k"); ok {
		t.Fatal("failed create must not be stored")
	}

	val, err := s.GetOrCreate("k", func() (int, error) { return 5, nil })
	if err != nil || val != 5 {
		t.Errorf("retry: got %d, %v", val, err)
	}
}

func TestStoreNeverEvicts(t *testing.T) {
	s := NewStore[int, int](func(i int) uint64 { return uint64(i) })
	const n = 5000
	for i := range n {
		if _, err := s.GetOrCreate(i, func() (int, error) { return i * 2, nil }); err != nil {
			t.Fatal(err)
		}
	}
	if s.Len() != n {
		t.Fatalf("Len() = %d, want %d", s.Len(), n)
	}
	for i := range n {
		v, ok := s.Get(i)
		if !ok || v != i*2 {
			t.Fatalf("Get(%d) = %d, %v", i, v, ok)
		}
	}
}

func TestStoreStats(t *testing.T) {
	s := NewStore[string, int](StringHasher)

	_, _ = s.GetOrCreate("a", func() (int, error) { return 1, nil }) // miss
	_, _ = s.GetOrCreate("a", func() (int, error) { return 1, nil }) // hit
	_, _ = s.Get("a")                                                 // hit
	_, _ = s.Get("b")                                                 // miss

	stats := s.Stats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("hits=%d misses=%d, want 2/2", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
	if stats.Len != 1 {
		t.Errorf("Len = %d, want 1", stats.Len)
	}
}

func TestStoreRange(t *testing.T) {
	s := NewStore[string, int](StringHasher)
	for i := range 10 {
		key := strconv.Itoa(i)
		_, _ = s.GetOrCreate(key, func() (int, error) { return i, nil })
	}

	sum := 0
	s.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 45 {
		t.Errorf("sum over Range = %d, want 45", sum)
	}

	visited := 0
	s.Range(func(string, int) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("Range did not stop early, visited %d", visited)
	}
}

func TestStoreConcurrentCreateOnce(t *testing.T) {
	s := NewStore[string, int](StringHasher)
	var creates atomic.Int32

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range 50 {
				key := "k" + strconv.Itoa(k)
				_, _ = s.GetOrCreate(key, func() (int, error) {
					creates.Add(1)
					return k, nil
				})
			}
		}()
	}
	wg.Wait()

	if got := creates.Load(); got != 50 {
		t.Errorf("create ran %d times, want 50", got)
	}
}
