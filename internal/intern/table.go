package intern

import (
	"sync"

	"github.com/gogpu/material/fault"
)

// Table assigns stable small-integer ids to structurally equal keys.
// Ids start at 1; id 0 is never assigned and always fails lookup.
// Entries are never evicted.
//
// Table is safe for concurrent use.
// Table must not be copied after creation (has mutex).
type Table[K comparable, V any] struct {
	mu     sync.RWMutex
	name   string
	ids    map[K]uint32
	keys   []K // index id-1
	values []V // index id-1
}

// New creates an empty table. name is reported in lookup errors.
func New[K comparable, V any](name string) *Table[K, V] {
	return &Table[K, V]{
		name: name,
		ids:  make(map[K]uint32),
	}
}

// Intern returns the id for key, calling create under the lock the first
// time the key is seen. A failing create leaves the table unchanged.
// The returned bool reports whether the key was already present.
func (t *Table[K, V]) Intern(key K, create func() (V, error)) (uint32, bool, error) {
	t.mu.RLock()
	id, ok := t.ids[key]
	t.mu.RUnlock()
	if ok {
		return id, true, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another caller may have won the race between the two locks.
	if id, ok := t.ids[key]; ok {
		return id, true, nil
	}

	var value V
	if create != nil {
		var err error
		value, err = create()
		if err != nil {
			return 0, false, err
		}
	}

	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
	id = uint32(len(t.keys))
	t.ids[key] = id
	return id, false, nil
}

// Put interns key with a fixed value and returns its id.
func (t *Table[K, V]) Put(key K, value V) uint32 {
	id, _, _ := t.Intern(key, func() (V, error) { return value, nil })
	return id
}

// Get returns the key and value stored under id.
// Returns a *fault.LookupError for id 0 or an id that was never assigned.
func (t *Table[K, V]) Get(id uint32) (K, V, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == 0 || int(id) > len(t.keys) {
		var k K
		var v V
		return k, v, &fault.LookupError{Table: t.name, ID: uint64(id)}
	}
	return t.keys[id-1], t.values[id-1], nil
}

// Value returns the value stored under id.
func (t *Table[K, V]) Value(id uint32) (V, error) {
	_, v, err := t.Get(id)
	return v, err
}

// Key returns the key stored under id.
func (t *Table[K, V]) Key(id uint32) (K, error) {
	k, _, err := t.Get(id)
	return k, err
}

// Len returns the number of assigned ids.
func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keys)
}

// Range calls fn for every entry in id order until fn returns false.
// fn must not call back into the table.
func (t *Table[K, V]) Range(fn func(id uint32, key K, value V) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := range t.keys {
		if !fn(uint32(i+1), t.keys[i], t.values[i]) {
			return
		}
	}
}
