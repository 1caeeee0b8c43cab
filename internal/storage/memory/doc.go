// Package memory provides an in-process page store.
//
// It implements storage.PageStore with a sharded map of databases, each
// holding its pages in a plain map guarded by its own lock. Content is
// copied on the way in and out, so callers can never alias stored pages.
package memory
