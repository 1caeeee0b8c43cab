package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// Database is the database file a journal belongs to.
type Database interface {
	// Name is the registered database name.
	Name() string

	// PageStore returns the store holding committed pages.
	PageStore() storage.PageReader

	// Commit makes pending writes durable. Errors are surfaced by the
	// database file itself.
	Commit(ctx context.Context)

	// SectorSize returns the database file sector size.
	SectorSize() int
}

// DatabaseLookup resolves open database files by name.
type DatabaseLookup interface {
	Lookup(name string) (Database, bool)
}

// File is a rollback journal that keeps page numbers instead of page
// content and reconstructs entries from the page store on read.
//
// File is used by one logical caller at a time. Overlapping reads are safe.
type File struct {
	vfs.Base

	id      string
	name    string
	db      Database
	logger  *slog.Logger
	metrics *metric.Metrics

	mu     sync.Mutex
	closed bool
	header headerBuffer
	ledger ledger

	entries *reconstructor
}

var _ vfs.File = (*File)(nil)

// Open binds a journal named name to its database file.
//
// The database name is name without the journal suffix. Open fails with
// vfs.ErrCantOpen wrapping ErrDatabaseNotFound when no such database file
// is open.
func Open(ctx context.Context, name string, lookup DatabaseLookup, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dbName := DatabaseName(name, o.suffix)
	db, ok := lookup.Lookup(dbName)
	if !ok {
		return nil, vfs.ErrCantOpen.WithDetails(name).WithCause(ErrDatabaseNotFound)
	}

	f := &File{
		id:      ulid.Make().String(),
		name:    name,
		db:      db,
		metrics: o.metrics,
		header:  newHeaderBuffer(),
		entries: &reconstructor{
			db:      db.Name(),
			store:   db.PageStore(),
			metrics: o.metrics,
		},
	}
	base := o.logger
	if base == nil {
		base = logger.FromContext(ctx)
	}
	f.logger = logger.Component(base, "journal").With(
		slog.String("journal_id", f.id),
		slog.String("journal", name),
	)

	f.metrics.JournalOpened()
	f.logger.DebugContext(ctx, "journal opened", "database", db.Name())
	return f, nil
}

// ID returns the per-open identifier used in logs.
func (f *File) ID() string { return f.id }

// Name returns the journal file name.
func (f *File) Name() string { return f.name }

// Close releases the journal state.
func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	f.header = newHeaderBuffer()
	f.ledger = ledger{}

	f.metrics.JournalClosed()
	f.logger.DebugContext(ctx, "journal closed")
	return nil
}

// WriteAt records header bytes and entry page numbers.
//
// Writes below the sector size go to the header buffer. A write at the
// start of an entry slot records its page number. Every other byte is
// dropped. A write at offset 0 reparses the header, or signals a commit
// when its first byte is zero. A header declaring a sector or page size out
// of range, or a slot past the ledger bound, fails with vfs.ErrIO.
func (f *File) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, vfs.ErrIO.WithDetails(fmt.Sprintf("negative offset %d", off))
	}
	if len(p) == 0 {
		return 0, nil
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}

	var err error
	if f.header.contains(off) {
		err = f.header.write(p, off)
	} else if rel := off - f.header.sectorSize; rel%f.header.entrySize() == 0 && len(p) >= 4 {
		slot := rel / f.header.entrySize()
		if err = f.ledger.set(slot, binary.BigEndian.Uint32(p)); err == nil {
			f.metrics.Discarded(len(p) - 4)
		}
	} else {
		f.metrics.Discarded(len(p))
	}
	if err == nil && off == 0 && p[0] != 0 {
		err = f.header.parse()
	}
	if err != nil {
		f.mu.Unlock()
		f.logger.WarnContext(ctx, "journal write rejected", "offset", off, "length", len(p), "error", err)
		return 0, vfs.ErrIO.WithDetails(f.name).WithCause(err)
	}

	commit := false
	if off == 0 {
		if p[0] != 0 {
			f.logger.DebugContext(ctx, "journal header parsed",
				"nonce", f.header.nonce,
				"sector_size", f.header.sectorSize,
				"page_size", f.header.pageSize,
			)
		} else {
			commit = true
		}
	}
	f.mu.Unlock()

	if commit {
		f.metrics.CommitSignal()
		f.logger.DebugContext(ctx, "journal header cleared, committing", "database", f.db.Name())
		f.db.Commit(ctx)
	}
	return len(p), nil
}

// ReadAt serves header bytes or reconstructed entry bytes.
//
// Reads at or past FileSize, past the header buffer, or across the end of
// an entry are short: the rest of p is zero-filled and vfs.ErrShortRead is
// returned. Page store errors are returned unchanged.
func (f *File) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, vfs.ErrIO.WithDetails(fmt.Sprintf("negative offset %d", off))
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}

	if off >= f.sizeLocked() {
		f.mu.Unlock()
		vfs.ZeroFill(p)
		return f.shortRead(0)
	}

	if f.header.contains(off) {
		n := 0
		if off < int64(len(f.header.buf)) {
			n = copy(p, f.header.buf[off:])
		}
		f.mu.Unlock()
		if n < len(p) {
			vfs.ZeroFill(p[n:])
			return f.shortRead(n)
		}
		return n, nil
	}

	entrySize := f.header.entrySize()
	rel := off - f.header.sectorSize
	slot := rel / entrySize
	pgno, ok := f.ledger.get(slot)
	key := entryKey{pgno: pgno, nonce: f.header.nonce, pageSize: f.header.pageSize}
	f.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("journal: read of unassigned entry slot %d", slot))
	}

	entry, err := f.entries.entry(ctx, key)
	if err != nil {
		f.logger.DebugContext(ctx, "entry reconstruction failed", "page", key.pgno, "error", err)
		return 0, err
	}

	n := copy(p, entry[rel%entrySize:])
	if n < len(p) {
		vfs.ZeroFill(p[n:])
		return f.shortRead(n)
	}
	return n, nil
}

func (f *File) shortRead(n int) (int, error) {
	f.metrics.ShortRead("journal")
	return n, vfs.ErrShortRead
}

// Truncate shrinks the header buffer. The ledger is kept.
//
// It panics if size exceeds the header buffer length.
func (f *File) Truncate(ctx context.Context, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	f.header.truncate(size)
	f.logger.DebugContext(ctx, "journal truncated", "size", size)
	return nil
}

// FileSize returns sector size + ledger length × entry size, or the header
// buffer length before the header has been parsed.
func (f *File) FileSize(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	return f.sizeLocked(), nil
}

func (f *File) sizeLocked() int64 {
	if !f.header.parsed() {
		return int64(len(f.header.buf))
	}
	return f.header.sectorSize + f.ledger.len()*f.header.entrySize()
}

// SectorSize returns the database file sector size.
func (f *File) SectorSize() int {
	return f.db.SectorSize()
}

// DeviceCharacteristics reports safe append and undeletable when open.
func (f *File) DeviceCharacteristics() vfs.DeviceCharacteristic {
	return vfs.IOCapSafeAppend | vfs.IOCapUndeletableWhenOpen
}
