// Package cache provides the content-addressed store used for composed
// shader sources and compiled shader modules.
//
// # Store[K, V]
//
// A sharded map that computes each value once and keeps it for the lifetime
// of the store. Uses 16 shards to reduce lock contention; the hasher only
// selects the shard.
//
//	s := cache.NewStore[string, int](cache.StringHasher)
//	v, err := s.GetOrCreate("key", func() (int, error) { return 42, nil })
//
// There is no eviction and no invalidation. Keys are derived from authored
// content, so the number of entries is bounded by that content.
//
// # Thread Safety
//
// Store is safe for concurrent use and must not be copied after creation.
package cache
