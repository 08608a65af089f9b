// Package intern provides the id-assigning tables behind every identity in
// the material packages (vertex layouts, names, shader variables, samplers,
// render target formats).
//
// # Table[K, V]
//
// A thread-safe map from a comparable key to a small integer id, plus an
// arbitrary value computed once when the key is first seen.
//
//	t := intern.New[string, struct{}]("names")
//	id := t.Put("position", struct{}{}) // 1
//	again := t.Put("position", struct{}{}) // 1
//
// Ids are dense, start at 1 and never change. Id 0 is the invalid sentinel:
// Get(0) always fails with a *fault.LookupError. There is no eviction; the
// number of entries is bounded by authored content, not runtime input.
package intern
