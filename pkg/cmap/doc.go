// Package cmap provides a concurrent string-keyed map.
//
// Keys are spread over a power-of-two number of shards by their murmur3
// hash; each shard has its own RWMutex, so unrelated keys never contend.
//
// Usage:
//
//	m := cmap.New[string]()
//	prev, existed := m.Set("key", "value")
//	val, ok := m.Get("key")
//
// All operations are thread-safe. Iteration (Range, Keys) visits shards one
// at a time and is not a consistent snapshot across shards.
package cmap
