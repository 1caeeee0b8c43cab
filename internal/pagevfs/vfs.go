package pagevfs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/pagejournal/internal/dbfile"
	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/telemetry/logger"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// Config configures a VFS.
type Config struct {
	// JournalSuffix turns a database name into its journal name.
	JournalSuffix string

	// SectorSize is reported by database files.
	SectorSize int

	// PageSize is used by new databases whose first write is not a whole
	// page. Zero adopts the size of the first write.
	PageSize int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		JournalSuffix: journal.DefaultSuffix,
		SectorSize:    vfs.DefaultSectorSize,
	}
}

// VFS opens database and journal files over one page store.
type VFS struct {
	cfg       Config
	store     storage.PageStore
	databases *vfs.Registry[*dbfile.File]
	base      *slog.Logger // handed to files, which add their own component
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// databaseLookup resolves journal names to open database files.
type databaseLookup struct {
	files *vfs.Registry[*dbfile.File]
}

func (l databaseLookup) Lookup(name string) (journal.Database, bool) {
	f, ok := l.files.Lookup(name)
	if !ok {
		return nil, false
	}
	return f, true
}

// New creates a VFS over store. log and metrics may be nil.
func New(cfg Config, store storage.PageStore, log *slog.Logger, metrics *metric.Metrics) *VFS {
	if cfg.JournalSuffix == "" {
		cfg.JournalSuffix = journal.DefaultSuffix
	}
	if cfg.SectorSize <= 0 {
		cfg.SectorSize = vfs.DefaultSectorSize
	}
	return &VFS{
		cfg:       cfg,
		store:     store,
		databases: vfs.NewRegistry[*dbfile.File](),
		base:      log,
		logger:    logger.Component(log, "pagevfs"),
		metrics:   metrics,
	}
}

// Open opens name as the file kind selected by flags.
func (v *VFS) Open(ctx context.Context, name string, flags vfs.OpenFlag) (vfs.File, error) {
	switch {
	case flags.Has(vfs.OpenMainDB):
		return v.openDatabase(ctx, name, flags)
	case flags.Has(vfs.OpenMainJournal):
		f, err := journal.Open(ctx, name, databaseLookup{v.databases},
			journal.WithSuffix(v.cfg.JournalSuffix),
			journal.WithLogger(v.base),
			journal.WithMetrics(v.metrics),
		)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, vfs.ErrCantOpen.WithDetails(fmt.Sprintf("%s: unsupported open flags %#x", name, uint32(flags)))
	}
}

func (v *VFS) openDatabase(ctx context.Context, name string, flags vfs.OpenFlag) (vfs.File, error) {
	f, err := dbfile.Open(ctx, name, v.store,
		dbfile.WithLogger(v.base),
		dbfile.WithMetrics(v.metrics),
		dbfile.WithSectorSize(v.cfg.SectorSize),
		dbfile.WithPageSize(v.cfg.PageSize),
		dbfile.WithReadOnly(flags.Has(vfs.OpenReadOnly)),
	)
	if err != nil {
		return nil, err
	}

	if !v.databases.Register(name, f) {
		_ = f.Close(ctx)
		return nil, vfs.ErrCantOpen.WithDetails(name + ": database already open")
	}
	v.logger.DebugContext(ctx, "database registered", "database", name)
	return &database{File: f, vfs: v}, nil
}

// Delete removes name.
//
// Deleting a journal commits its database file; a failed commit is
// returned and the buffered pages stay pending. Deleting a database
// removes all of its pages and fails while it is open.
func (v *VFS) Delete(ctx context.Context, name string) error {
	if journal.IsJournalName(name, v.cfg.JournalSuffix) {
		dbName := journal.DatabaseName(name, v.cfg.JournalSuffix)
		db, ok := v.databases.Lookup(dbName)
		if !ok {
			v.logger.DebugContext(ctx, "journal deleted without open database", "journal", name)
			return nil
		}
		v.metrics.CommitSignal()
		if err := db.Flush(ctx); err != nil {
			return vfs.NewError(vfs.ResultIOErrDelete, "commit on journal delete").WithDetails(name).WithCause(err)
		}
		return nil
	}

	if _, open := v.databases.Lookup(name); open {
		return vfs.NewError(vfs.ResultIOErrDelete, "database is open").WithDetails(name)
	}
	if err := v.store.DeleteDatabase(ctx, name); err != nil {
		return vfs.NewError(vfs.ResultIOErrDelete, "delete database").WithDetails(name).WithCause(err)
	}
	v.logger.InfoContext(ctx, "database deleted", "database", name)
	return nil
}

// Access reports whether name exists. Journals never exist, so the engine
// never looks for a hot journal.
func (v *VFS) Access(ctx context.Context, name string, _ vfs.AccessFlag) (bool, error) {
	if journal.IsJournalName(name, v.cfg.JournalSuffix) {
		return false, nil
	}
	n, err := v.store.PageCount(ctx, name)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Databases returns the names of open database files.
func (v *VFS) Databases() []string {
	return v.databases.Names()
}

// database unregisters its file on close.
type database struct {
	*dbfile.File
	vfs *VFS
}

func (d *database) Close(ctx context.Context) error {
	d.vfs.databases.Unregister(d.Name(), func(f *dbfile.File) bool {
		return f == d.File
	})
	d.vfs.logger.DebugContext(ctx, "database unregistered", "database", d.Name())
	return d.File.Close(ctx)
}
