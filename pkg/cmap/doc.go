// Package cmap provides a concurrent map split into independently locked shards.
//
// It backs the database registry and the in-memory page store, where many
// short critical sections on unrelated keys should not contend on one lock.
//
//	m := cmap.New[string, *pageSet]()
//	m.Set("main.db", set)
//	set, ok := m.Get("main.db")
//
// Shards are selected with murmur3 over the key's string form.
package cmap
