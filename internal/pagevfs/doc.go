// Package pagevfs dispatches engine file operations to page-store backed
// files.
//
// Main database files are served by dbfile and registered by name so that
// the rollback journal opened next to them can find them. Journals are
// served by journal. Deleting a journal commits its database file, which
// is how a transaction ends in the default journal mode.
//
// Temporary files, sub-journals and WAL files are not supported.
package pagevfs
