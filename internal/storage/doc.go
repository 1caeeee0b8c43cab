// Package storage provides the backing page store.
//
// Database files persist fixed-size pages as values of an embedded KV
// engine, one key per page:
//
//	p/<database name> 0x00 <zero-based page index, uint32 big-endian>
//
// Implementations:
//
//   - BadgerEngine: durable store on Badger v3, optional zstd page codec
//   - memory.Store: process-local store for tests and scratch databases
//
// Changes are applied per database in atomic batches (ApplyBatch), which
// is what lets a database file keep the store at its pre-transaction
// state until commit.
package storage
