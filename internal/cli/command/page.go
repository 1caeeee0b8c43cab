package command

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/yndnr/pagejournal/internal/dbfile"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// sqliteMagic opens every SQLite database image.
var sqliteMagic = []byte("SQLite format 3\x00")

// PageCommand returns the page command.
func PageCommand() *cli.Command {
	return &cli.Command{
		Name:  "page",
		Usage: "Move database images in and out of the page store",
		Subcommands: []*cli.Command{
			pageImportCommand(),
			pageExportCommand(),
			pageListCommand(),
		},
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Database name in the page store",
		Required: true,
	}
}

// pageSummary describes a database after import or export.
type pageSummary struct {
	Database string `json:"database" yaml:"database" table:"DATABASE"`
	Pages    int64  `json:"pages" yaml:"pages" table:"PAGES"`
	PageSize int64  `json:"page_size" yaml:"page_size" table:"PAGE_SIZE"`
	Bytes    int64  `json:"bytes" yaml:"bytes" table:"BYTES"`
	File     string `json:"file" yaml:"file" table:"FILE"`
}

func pageImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Split a SQLite database image into pages",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.BoolFlag{
				Name:  "replace",
				Usage: "Replace an existing database of the same name",
			},
			maxRateFlag(),
		},
		Action: runPageImport,
	}
}

func runPageImport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("import requires exactly one FILE argument")
	}
	path := c.Args().First()
	name := c.String("db")

	image, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	pageSize, err := imagePageSize(image)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	e := envFrom(c)
	store, err := e.Store()
	if err != nil {
		return err
	}

	n, err := store.PageCount(c.Context, name)
	if err != nil {
		return err
	}
	if n > 0 {
		if !c.Bool("replace") {
			return fmt.Errorf("database %s already holds %d pages (use --replace)", name, n)
		}
		if err := store.DeleteDatabase(c.Context, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}

	f, err := dbfile.Open(c.Context, name, store, dbfile.WithPageSize(pageSize), dbfile.WithMetrics(e.metrics))
	if err != nil {
		return err
	}
	defer f.Close(c.Context)

	limiter := newByteLimiter(c.Int64("max-rate"), int(pageSize))
	if err := writeImage(c.Context, f, image, pageSize, importFlushBytes, limiter); err != nil {
		return err
	}
	if err := f.Sync(c.Context, vfs.SyncFull); err != nil {
		return err
	}

	e.logger.Info("database imported", "database", name, "pages", int64(len(image))/pageSize)
	return e.print(c, pageSummary{
		Database: name,
		Pages:    int64(len(image)) / pageSize,
		PageSize: pageSize,
		Bytes:    int64(len(image)),
		File:     path,
	})
}

// importFlushBytes bounds how much of an image is buffered between commits.
const importFlushBytes = 4 << 20

// writeImage writes image page by page, committing every flushBytes.
// The import as a whole is not atomic.
func writeImage(ctx context.Context, f *dbfile.File, image []byte, pageSize, flushBytes int64, limiter *rate.Limiter) error {
	perFlush := max(flushBytes/pageSize, 1)
	for off := int64(0); off < int64(len(image)); off += pageSize {
		if limiter != nil {
			if err := limiter.WaitN(ctx, int(pageSize)); err != nil {
				return err
			}
		}
		pgno := off/pageSize + 1
		if _, err := f.WriteAt(ctx, image[off:off+pageSize], off); err != nil {
			return fmt.Errorf("write page %d: %w", pgno, err)
		}
		if pgno%perFlush == 0 {
			if err := f.Flush(ctx); err != nil {
				return fmt.Errorf("commit pages up to %d: %w", pgno, err)
			}
		}
	}
	if err := f.Flush(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// imagePageSize validates a database image and returns its page size.
func imagePageSize(image []byte) (int64, error) {
	if !bytes.HasPrefix(image, sqliteMagic) {
		return 0, fmt.Errorf("not a SQLite database image")
	}
	pageSize := dbfile.PageSizeOf(image)
	if pageSize == 0 {
		return 0, fmt.Errorf("invalid page size in database header")
	}
	if int64(len(image))%pageSize != 0 {
		return 0, fmt.Errorf("image size %d is not a multiple of page size %d", len(image), pageSize)
	}
	return pageSize, nil
}

func pageExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the pages of a database back as a SQLite image",
		ArgsUsage: "FILE",
		Flags:     []cli.Flag{dbFlag(), maxRateFlag()},
		Action:    runPageExport,
	}
}

func runPageExport(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("export requires exactly one FILE argument")
	}
	path := c.Args().First()
	name := c.String("db")

	e := envFrom(c)
	store, err := e.Store()
	if err != nil {
		return err
	}

	f, err := dbfile.Open(c.Context, name, store, dbfile.WithReadOnly(true), dbfile.WithMetrics(e.metrics))
	if err != nil {
		return err
	}
	defer f.Close(c.Context)

	size, err := f.FileSize(c.Context)
	if err != nil {
		return err
	}
	if size == 0 {
		return fmt.Errorf("database %s not found", name)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	w := throttledWriter{
		ctx:     c.Context,
		w:       out,
		limiter: newByteLimiter(c.Int64("max-rate"), int(f.PageSize())),
	}
	written, err := io.Copy(w, io.NewSectionReader(fileReader{ctx: c.Context, f: f}, 0, size))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return e.print(c, pageSummary{
		Database: name,
		Pages:    size / f.PageSize(),
		PageSize: f.PageSize(),
		Bytes:    written,
		File:     path,
	})
}

// pageInfo is one row of page list.
type pageInfo struct {
	PageNumber uint32 `json:"pgno" yaml:"pgno" table:"PGNO"`
	Size       int    `json:"size" yaml:"size" table:"SIZE"`
	Hash       string `json:"hash" yaml:"hash" table:"HASH"`
}

func pageListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored pages with a content fingerprint",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.StringFlag{
				Name:  "hash",
				Usage: "Fingerprint algorithm: xxh3, blake2b",
				Value: "xxh3",
			},
		},
		Action: runPageList,
	}
}

func runPageList(c *cli.Context) error {
	hash, err := pageHasher(c.String("hash"))
	if err != nil {
		return err
	}

	e := envFrom(c)
	store, err := e.Store()
	if err != nil {
		return err
	}

	pages := []pageInfo{}
	err = store.ScanPages(c.Context, c.String("db"), func(index uint32, page []byte) bool {
		pages = append(pages, pageInfo{
			PageNumber: index + 1,
			Size:       len(page),
			Hash:       hash(page),
		})
		return true
	})
	if err != nil {
		return err
	}
	return e.print(c, pages)
}

func pageHasher(name string) (func([]byte) string, error) {
	switch name {
	case "xxh3":
		return func(p []byte) string {
			return fmt.Sprintf("%016x", xxh3.Hash(p))
		}, nil
	case "blake2b":
		return func(p []byte) string {
			sum := blake2b.Sum256(p)
			return hex.EncodeToString(sum[:])
		}, nil
	default:
		return nil, fmt.Errorf("unknown hash %q (want xxh3 or blake2b)", name)
	}
}
