package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ShardCount is the number of shards for reduced lock contention.
// Must be a power of 2 for fast modulo via bitwise AND.
const ShardCount = 16

const shardMask = ShardCount - 1

// Hasher computes a hash for a key. Used for shard selection only.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Store is a thread-safe, sharded, content-addressed store.
//
// Unlike an LRU cache a Store never evicts: a value computed for a key lives
// as long as the Store. This matches caches whose key space is bounded by
// authored content (composed shader text, compiled modules).
//
// Store must not be copied after creation (has mutexes).
type Store[K comparable, V any] struct {
	shards [ShardCount]*storeShard[K, V]
	hasher Hasher[K]

	hits   atomic.Uint64
	misses atomic.Uint64
}

type storeShard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// NewStore creates an empty store using hasher for shard selection.
func NewStore[K comparable, V any](hasher Hasher[K]) *Store[K, V] {
	s := &Store[K, V]{hasher: hasher}
	for i := range s.shards {
		s.shards[i] = &storeShard[K, V]{entries: make(map[K]V)}
	}
	return s
}

func (s *Store[K, V]) shard(key K) *storeShard[K, V] {
	return s.shards[s.hasher(key)&shardMask]
}

// Get returns the value stored for key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	sh := s.shard(key)
	sh.mu.RLock()
	v, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return v, ok
}

// GetOrCreate returns the stored value for key or computes it with create.
//
// create runs with the shard lock held, so concurrent callers asking for the
// same key never compute it twice. A create error is returned to the caller
// and nothing is stored: the next call retries.
func (s *Store[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	sh := s.shard(key)

	sh.mu.RLock()
	v, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		s.hits.Add(1)
		return v, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if v, ok := sh.entries[key]; ok {
		s.hits.Add(1)
		return v, nil
	}

	s.misses.Add(1)
	v, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	sh.entries[key] = v
	return v, nil
}

// Len returns the total number of entries across all shards.
func (s *Store[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	return total
}

// Range calls fn for every entry until fn returns false. Order is unspecified.
// fn must not call back into the store.
func (s *Store[K, V]) Range(fn func(K, V) bool) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, v := range sh.entries {
			if !fn(k, v) {
				sh.mu.RUnlock()
				return
			}
		}
		sh.mu.RUnlock()
	}
}

// Stats returns current store statistics.
func (s *Store[K, V]) Stats() Stats {
	hits := s.hits.Load()
	misses := s.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:     s.Len(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Stats holds store statistics.
type Stats struct {
	Len     int
	Hits    uint64
	Misses  uint64
	HitRate float64
}
