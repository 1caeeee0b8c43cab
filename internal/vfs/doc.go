// Package vfs defines the file contract shared by every file kind the
// page-store VFS serves.
//
// It provides:
//
//   - File: the capability interface the engine drives (read, write,
//     truncate, sync, size, sector size, device characteristics, locks)
//   - Base: default no-op behaviors composed into concrete files
//   - Error: result-code carrying errors compatible with errors.Is
//   - Registry: a concurrent name to object mapping injected into openers
//
// Flag and result code values match the SQLite C API so they can be passed
// through a cgo or wasm bridge unchanged.
package vfs
