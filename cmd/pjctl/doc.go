// Package main provides the entry point for pjctl.
//
// pjctl manages SQLite databases kept as pages in a key-value store: it
// imports and exports database images, lists stored pages, synthesizes
// rollback journals through the virtual journal file and verifies journal
// checksums.
package main
