package vfs

import "github.com/yndnr/pagejournal/pkg/cmap"

// Registry maps file names to open objects of type T.
//
// It is the explicit name lookup handed to openers that need to find an
// already-open sibling, e.g. a journal looking for its database file.
type Registry[T any] struct {
	items *cmap.Map[string, T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: cmap.New[string, T]()}
}

// Register adds obj under name. It returns false, leaving the existing
// entry untouched, if the name is already taken.
func (r *Registry[T]) Register(name string, obj T) bool {
	return r.items.SetIfAbsent(name, obj)
}

// Unregister removes name if it still maps to an object for which same
// returns true.
func (r *Registry[T]) Unregister(name string, same func(T) bool) bool {
	return r.items.CompareAndDelete(name, same)
}

// Lookup returns the object registered under name.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	return r.items.Get(name)
}

// Names returns all registered names in no particular order.
func (r *Registry[T]) Names() []string {
	return r.items.Keys()
}

// Len returns the number of registered names.
func (r *Registry[T]) Len() int {
	return r.items.Count()
}
