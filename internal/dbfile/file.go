package dbfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
	"github.com/yndnr/pagejournal/internal/vfs"
)

var (
	// ErrUnknownPageSize reports a partial-page write before the page size
	// is known.
	ErrUnknownPageSize = vfs.NewError(vfs.ResultIOErrWrite, "page size not known")

	// ErrClosed reports use of a closed database file.
	ErrClosed = vfs.NewError(vfs.ResultMisuse, "database file closed")
)

// File is a database file backed by a page store.
//
// Pages are addressed by zero-based index: byte offset off belongs to page
// index off / pageSize.
type File struct {
	vfs.Base

	id         string
	name       string
	store      storage.PageStore
	logger     *slog.Logger
	metrics    *metric.Metrics
	sectorSize int
	readOnly   bool

	mu        sync.Mutex
	closed    bool
	pageSize  int64
	npages    uint32
	dirty     map[uint32][]byte
	truncate  *uint32
	commitErr error
}

var (
	_ vfs.File         = (*File)(nil)
	_ journal.Database = (*File)(nil)
)

// Open opens database name over store.
//
// The page size comes from the stored database header when page 1 exists.
func Open(ctx context.Context, name string, store storage.PageStore, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := storage.ValidateDatabaseName(name); err != nil {
		return nil, vfs.ErrCantOpen.WithDetails(name).WithCause(err)
	}

	npages, err := store.PageCount(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("count pages of %s: %w", name, err)
	}

	pageSize := o.pageSize
	if npages > 0 {
		first, err := store.GetPage(ctx, name, 0)
		if err != nil && !errors.Is(err, storage.ErrPageNotFound) {
			return nil, fmt.Errorf("read header page of %s: %w", name, err)
		}
		if n := PageSizeOf(first); n != 0 {
			pageSize = n
		}
	}

	f := &File{
		id:         ulid.Make().String(),
		name:       name,
		store:      store,
		metrics:    o.metrics,
		sectorSize: o.sectorSize,
		readOnly:   o.readOnly,
		pageSize:   pageSize,
		npages:     npages,
		dirty:      make(map[uint32][]byte),
	}
	base := o.logger
	if base == nil {
		base = logger.FromContext(ctx)
	}
	f.logger = logger.Component(base, "dbfile").With(
		slog.String("file_id", f.id),
		slog.String("database", name),
	)
	f.logger.DebugContext(ctx, "database opened", "pages", npages, "page_size", pageSize)
	return f, nil
}

// Name returns the database name.
func (f *File) Name() string { return f.name }

// PageStore returns the store holding committed pages.
func (f *File) PageStore() storage.PageReader { return f.store }

// PageSize returns the page size, or 0 while unknown.
func (f *File) PageSize() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pageSize
}

// Pending returns the number of buffered pages.
func (f *File) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dirty)
}

// Close discards uncommitted writes.
func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if n := len(f.dirty); n > 0 || f.truncate != nil {
		f.logger.WarnContext(ctx, "closing with uncommitted pages", "pages", n)
	}
	f.dirty = nil
	f.truncate = nil
	return nil
}

// ReadAt reads committed or buffered page content.
//
// Pages inside the file that were never written read as zeros. Reads past
// the end are short.
func (f *File) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, vfs.ErrIO.WithDetails(fmt.Sprintf("negative offset %d", off))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	size := f.sizeLocked()
	n := 0
	for n < len(p) && off+int64(n) < size {
		pos := off + int64(n)
		index := uint32(pos / f.pageSize)
		page, err := f.pageLocked(ctx, index)
		if err != nil {
			return n, err
		}
		n += copy(p[n:min(len(p), int(size-off))], page[pos%f.pageSize:])
	}

	if n < len(p) {
		vfs.ZeroFill(p[n:])
		f.metrics.ShortRead("database")
		return n, vfs.ErrShortRead
	}
	return n, nil
}

// WriteAt buffers p until the next Commit.
func (f *File) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, vfs.ErrIO.WithDetails(fmt.Sprintf("negative offset %d", off))
	}
	if f.readOnly {
		return 0, vfs.ErrReadOnly.WithDetails(f.name)
	}
	if len(p) == 0 {
		return 0, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}

	if f.pageSize == 0 {
		n := int64(len(p))
		if !ValidPageSize(n) || off%n != 0 {
			return 0, ErrUnknownPageSize.WithDetails(fmt.Sprintf("%d bytes at %d", len(p), off))
		}
		f.pageSize = n
		f.logger.DebugContext(ctx, "page size adopted", "page_size", n)
	}

	n := 0
	for n < len(p) {
		pos := off + int64(n)
		index := uint32(pos / f.pageSize)
		page, err := f.dirtyPageLocked(ctx, index)
		if err != nil {
			return n, err
		}
		n += copy(page[pos%f.pageSize:], p[n:])
		if index >= f.npages {
			f.npages = index + 1
		}
	}
	return n, nil
}

// Truncate buffers a resize to size bytes.
func (f *File) Truncate(ctx context.Context, size int64) error {
	if size < 0 {
		return vfs.NewError(vfs.ResultIOErrTruncate, "negative size")
	}
	if f.readOnly {
		return vfs.ErrReadOnly.WithDetails(f.name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	if f.pageSize == 0 {
		if size != 0 {
			return ErrUnknownPageSize.WithDetails(fmt.Sprintf("truncate to %d", size))
		}
		f.setTruncateLocked(0)
		return nil
	}

	n := uint32((size + f.pageSize - 1) / f.pageSize)
	if n >= f.npages {
		return nil
	}
	if tail := size % f.pageSize; tail != 0 {
		page, err := f.dirtyPageLocked(ctx, n-1)
		if err != nil {
			return err
		}
		clear(page[tail:])
	}
	f.setTruncateLocked(n)
	f.logger.DebugContext(ctx, "truncate buffered", "pages", n)
	return nil
}

func (f *File) setTruncateLocked(n uint32) {
	for index := range f.dirty {
		if index >= n {
			delete(f.dirty, index)
		}
	}
	if f.truncate == nil || n < *f.truncate {
		f.truncate = &n
	}
	f.npages = n
}

// Sync returns the error of the last failed commit, if any.
func (f *File) Sync(context.Context, vfs.SyncFlag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitErr
}

// FileSize returns page count × page size.
func (f *File) FileSize(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	return f.sizeLocked(), nil
}

func (f *File) sizeLocked() int64 {
	return int64(f.npages) * f.pageSize
}

// SectorSize returns the configured sector size.
func (f *File) SectorSize() int { return f.sectorSize }

// DeviceCharacteristics reports safe append, undeletable when open and
// powersafe overwrite.
func (f *File) DeviceCharacteristics() vfs.DeviceCharacteristic {
	return vfs.IOCapSafeAppend | vfs.IOCapUndeletableWhenOpen | vfs.IOCapPowersafeOverwrite
}

// Commit writes buffered pages and the pending truncate to the store as
// one batch. A failure keeps the buffers and is reported by the next Sync.
func (f *File) Commit(ctx context.Context) {
	_ = f.Flush(ctx)
}

// Flush is Commit that also returns the failure.
func (f *File) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	batch := storage.PageBatch{Pages: f.dirty, TruncateTo: f.truncate}
	if batch.Empty() {
		f.commitErr = nil
		return nil
	}

	if err := f.store.ApplyBatch(ctx, f.name, batch); err != nil {
		f.commitErr = vfs.ErrIO.WithDetails("commit " + f.name).WithCause(err)
		f.logger.ErrorContext(ctx, "commit failed", "pages", len(batch.Pages), "error", err)
		return f.commitErr
	}

	f.metrics.DatabaseCommitted(len(batch.Pages))
	f.logger.DebugContext(ctx, "committed", "pages", len(batch.Pages), "truncated", batch.TruncateTo != nil)
	f.dirty = make(map[uint32][]byte)
	f.truncate = nil
	f.commitErr = nil
	return nil
}

// Rollback discards buffered writes and reloads the page count.
func (f *File) Rollback(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	npages, err := f.store.PageCount(ctx, f.name)
	if err != nil {
		return fmt.Errorf("count pages of %s: %w", f.name, err)
	}
	discarded := len(f.dirty)
	f.dirty = make(map[uint32][]byte)
	f.truncate = nil
	f.npages = npages

	f.metrics.DatabaseRolledBack()
	f.logger.DebugContext(ctx, "rolled back", "pages", discarded)
	return nil
}

// pageLocked returns the current content of page index for reading.
func (f *File) pageLocked(ctx context.Context, index uint32) ([]byte, error) {
	if page, ok := f.dirty[index]; ok {
		return page, nil
	}

	page := make([]byte, f.pageSize)
	if f.truncate != nil && index >= *f.truncate {
		return page, nil
	}
	stored, err := f.store.GetPage(ctx, f.name, index)
	if errors.Is(err, storage.ErrPageNotFound) {
		return page, nil
	}
	if err != nil {
		return nil, err
	}
	copy(page, stored)
	return page, nil
}

// dirtyPageLocked returns the buffered copy of page index, creating it
// from the current content on first write.
func (f *File) dirtyPageLocked(ctx context.Context, index uint32) ([]byte, error) {
	if page, ok := f.dirty[index]; ok {
		return page, nil
	}
	page, err := f.pageLocked(ctx, index)
	if err != nil {
		return nil, err
	}
	f.dirty[index] = page
	return page, nil
}
