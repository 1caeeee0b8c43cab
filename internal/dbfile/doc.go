// Package dbfile implements a database file whose pages live in a page
// store.
//
// Writes are buffered in memory and reach the store only when the file is
// committed, as one atomic batch. Until then the store keeps the
// pre-transaction content the journal reconstructs its entries from.
package dbfile
