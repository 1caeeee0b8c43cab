// Package tests holds end-to-end tests that drive the page VFS with real
// SQLite database images over a badger page store.
package tests
