// Package metric provides Prometheus metrics for the page-store VFS.
//
// Metrics include:
//
//   - Journal entry reconstructions, cache hits and backing-store fetch latency
//   - Short reads and commit notifications
//   - Journal page bytes the engine wrote but the journal never stored
//   - Database file commits and committed pages
//
// A nil *Metrics is valid and records nothing, so components can take
// metrics as an optional dependency.
package metric
