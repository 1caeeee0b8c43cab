package storage

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrPageNotFound = errors.New("page not found")
	ErrClosed       = errors.New("page store closed")
)

// PageReader is the read-only view of a page store.
//
// index is zero-based: page number N of a database lives at index N-1.
// Returned slices are owned by the caller.
type PageReader interface {
	GetPage(ctx context.Context, db string, index uint32) ([]byte, error)
}

// PageBatch is a set of changes applied to one database as a unit.
type PageBatch struct {
	// Pages maps zero-based page index to full page content.
	Pages map[uint32][]byte

	// TruncateTo, when non-nil, removes every page at or above this index
	// before Pages are applied.
	TruncateTo *uint32
}

// Empty reports whether the batch changes nothing.
func (b PageBatch) Empty() bool {
	return len(b.Pages) == 0 && b.TruncateTo == nil
}

// PageStore persists database pages keyed by database name and index.
//
// Implementation requirements:
//   - Thread-safe: concurrent readers and one writer per database
//   - Atomic batches: ApplyBatch is all-or-nothing
type PageStore interface {
	PageReader

	// ApplyBatch writes a batch of page changes atomically.
	ApplyBatch(ctx context.Context, db string, batch PageBatch) error

	// PageCount returns the highest stored index + 1, or 0 when empty.
	PageCount(ctx context.Context, db string) (uint32, error)

	// ScanPages visits stored pages in index order until fn returns false.
	ScanPages(ctx context.Context, db string, fn func(index uint32, page []byte) bool) error

	// DeleteDatabase removes every page of db.
	DeleteDatabase(ctx context.Context, db string) error

	// Close releases the store.
	Close() error
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// TotalSize is the total disk usage in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size.
	LSMSize uint64

	// ValueLogSize is the value log size.
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCRuns is the number of value log rewrites performed by GC.
	GCRuns uint64
}

// KVConfig configures an embedded KV engine.
type KVConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory (Badger in-memory mode).
	InMemory bool

	// Compression selects the page value codec ("none", "zstd").
	// Default: "none"
	Compression string

	// Badger-specific configuration
	Badger BadgerConfig
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// MemTableSize is the memtable size in bytes. One transaction holds at
	// most 15% of it; larger page batches are staged. Zero keeps badger's
	// default (64MB).
	MemTableSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// NumLevelZeroTables is the number of Level 0 tables before compaction.
	// Default: 5
	NumLevelZeroTables int

	// NumLevelZeroTablesStall is the number of Level 0 tables that triggers write stall.
	// Default: 10
	NumLevelZeroTablesStall int

	// SyncWrites fsyncs every committed batch. A committed page batch is
	// the database's durability point, so this defaults to true.
	SyncWrites bool
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:         dir,
		Compression: CompressionNone,
		Badger:      DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:              "10m",
		GCThreshold:             0.5,
		CacheSize:               64 << 20,  // 64MB
		ValueLogFileSize:        256 << 20, // 256MB
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
		SyncWrites:              true,
	}
}
