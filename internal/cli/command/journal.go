package command

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pagejournal/internal/dbfile"
	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/pagevfs"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// JournalCommand returns the journal command.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "Inspect and synthesize rollback journals",
		Subcommands: []*cli.Command{
			journalVerifyCommand(),
			journalBuildCommand(),
		},
	}
}

// entryInfo is one row of journal verify.
type entryInfo struct {
	Segment    int    `json:"segment" yaml:"segment" table:"SEG"`
	Offset     int64  `json:"offset" yaml:"offset" table:"OFFSET"`
	PageNumber uint32 `json:"pgno" yaml:"pgno" table:"PGNO"`
	Checksum   string `json:"checksum" yaml:"checksum" table:"CHECKSUM"`
	Computed   string `json:"computed" yaml:"computed" table:"COMPUTED,wide"`
	Nonce      string `json:"nonce" yaml:"nonce" table:"NONCE,wide"`
	Valid      bool   `json:"valid" yaml:"valid" table:"VALID"`
}

func journalVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check the header and every entry checksum of a journal file",
		ArgsUsage: "FILE",
		Action:    runJournalVerify,
	}
}

func runJournalVerify(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("verify requires exactly one FILE argument")
	}
	path := c.Args().First()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	report, err := journal.Verify(f, st.Size())
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	rows := []entryInfo{}
	for i, seg := range report.Segments {
		for _, ent := range seg.Entries {
			rows = append(rows, entryInfo{
				Segment:    i,
				Offset:     ent.Offset,
				PageNumber: ent.PageNumber,
				Checksum:   fmt.Sprintf("%08x", ent.Checksum),
				Computed:   fmt.Sprintf("%08x", ent.Computed),
				Nonce:      fmt.Sprintf("%08x", seg.Header.Nonce),
				Valid:      ent.Valid(),
			})
		}
	}

	e := envFrom(c)
	if err := e.print(c, rows); err != nil {
		return err
	}
	if bad := len(report.Invalid()); bad > 0 {
		return cli.Exit(fmt.Sprintf("%s: %d of %d entries have bad checksums", path, bad, report.Entries()), 2)
	}
	return nil
}

// buildSummary describes a journal written by journal build.
type buildSummary struct {
	Journal  string `json:"journal" yaml:"journal" table:"JOURNAL"`
	Database string `json:"database" yaml:"database" table:"DATABASE"`
	Entries  int    `json:"entries" yaml:"entries" table:"ENTRIES"`
	Nonce    string `json:"nonce" yaml:"nonce" table:"NONCE"`
	Sector   int    `json:"sector_size" yaml:"sector_size" table:"SECTOR_SIZE"`
	PageSize int64  `json:"page_size" yaml:"page_size" table:"PAGE_SIZE"`
	Bytes    int64  `json:"bytes" yaml:"bytes" table:"BYTES"`
}

func journalBuildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Journal pages of a stored database and dump the reconstructed journal",
		ArgsUsage: "OUT",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.StringFlag{
				Name:     "pages",
				Usage:    "Comma separated page numbers to journal, e.g. 1,3,7",
				Required: true,
			},
			&cli.UintFlag{
				Name:  "nonce",
				Usage: "Checksum nonce (random when unset)",
			},
			&cli.IntFlag{
				Name:  "sector",
				Usage: "Journal sector size (defaults to database.sector_size)",
			},
		},
		Action: runJournalBuild,
	}
}

func runJournalBuild(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("build requires exactly one OUT argument")
	}
	outPath := c.Args().First()
	name := c.String("db")

	pgnos, err := parsePageList(c.String("pages"))
	if err != nil {
		return err
	}

	e := envFrom(c)
	sector := e.cfg.Database.SectorSize
	if c.IsSet("sector") {
		sector = c.Int("sector")
	}
	if sector < journal.HeaderSize {
		return fmt.Errorf("sector size %d is smaller than the journal header", sector)
	}
	nonce := rand.Uint32()
	if c.IsSet("nonce") {
		nonce = uint32(c.Uint("nonce"))
	}

	store, err := e.Store()
	if err != nil {
		return err
	}
	v := pagevfs.New(pagevfs.Config{
		JournalSuffix: e.cfg.Journal.Suffix,
		SectorSize:    sector,
		PageSize:      e.cfg.Database.PageSize,
	}, store, e.logger, e.metrics)

	ctx := c.Context
	db, err := v.Open(ctx, name, vfs.OpenMainDB|vfs.OpenReadWrite)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	dbHeader := make([]byte, 100)
	if err := readZeroFilled(ctx, db, dbHeader, 0); err != nil {
		return err
	}
	pageSize := dbfile.PageSizeOf(dbHeader)
	if pageSize == 0 {
		return fmt.Errorf("database %s has no valid header page", name)
	}
	dbSize, err := db.FileSize(ctx)
	if err != nil {
		return err
	}
	npages := uint32(dbSize / pageSize)

	jf, err := v.Open(ctx, name+e.cfg.Journal.Suffix, vfs.OpenMainJournal|vfs.OpenReadWrite|vfs.OpenCreate)
	if err != nil {
		return err
	}
	defer jf.Close(ctx)

	hdr := journal.Header{
		PageCount:   uint32(len(pgnos)),
		Nonce:       nonce,
		InitialSize: npages,
		SectorSize:  uint32(sector),
		PageSize:    uint32(pageSize),
	}
	if _, err := jf.WriteAt(ctx, hdr.AppendBinary(nil), 0); err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}

	entrySize := pageSize + 8
	page := make([]byte, pageSize)
	for i, pgno := range pgnos {
		if pgno > npages {
			return fmt.Errorf("page %d is beyond the end of %s (%d pages)", pgno, name, npages)
		}
		if _, err := db.ReadAt(ctx, page, int64(pgno-1)*pageSize); err != nil {
			return fmt.Errorf("read page %d: %w", pgno, err)
		}
		entry := journal.NewEntry(pgno, page, nonce).AppendBinary(nil)
		if _, err := jf.WriteAt(ctx, entry, int64(sector)+int64(i)*entrySize); err != nil {
			return fmt.Errorf("journal page %d: %w", pgno, err)
		}
	}

	written, err := dumpJournal(ctx, jf, outPath, sector, entrySize)
	if err != nil {
		return err
	}

	return e.print(c, buildSummary{
		Journal:  outPath,
		Database: name,
		Entries:  len(pgnos),
		Nonce:    fmt.Sprintf("%08x", nonce),
		Sector:   sector,
		PageSize: pageSize,
		Bytes:    written,
	})
}

// dumpJournal copies the journal as seen through its read path: the
// header sector first, then one entry at a time.
func dumpJournal(ctx context.Context, jf vfs.File, path string, sector int, entrySize int64) (int64, error) {
	size, err := jf.FileSize(ctx)
	if err != nil {
		return 0, err
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	buf := make([]byte, sector)
	if err := readZeroFilled(ctx, jf, buf, 0); err != nil {
		return 0, fmt.Errorf("read journal header: %w", err)
	}
	if _, err := out.Write(buf); err != nil {
		return 0, err
	}

	written := int64(sector)
	buf = make([]byte, entrySize)
	for off := int64(sector); off+entrySize <= size; off += entrySize {
		if _, err := jf.ReadAt(ctx, buf, off); err != nil {
			return written, fmt.Errorf("read journal entry at %d: %w", off, err)
		}
		if _, err := out.Write(buf); err != nil {
			return written, err
		}
		written += entrySize
	}
	return written, out.Close()
}

// parsePageList parses "3,1,7" into sorted unique page numbers.
func parsePageList(s string) ([]uint32, error) {
	seen := make(map[uint32]bool)
	var pgnos []uint32
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid page number %q", field)
		}
		if !seen[uint32(n)] {
			seen[uint32(n)] = true
			pgnos = append(pgnos, uint32(n))
		}
	}
	if len(pgnos) == 0 {
		return nil, fmt.Errorf("no page numbers given")
	}
	sort.Slice(pgnos, func(i, j int) bool { return pgnos[i] < pgnos[j] })
	return pgnos, nil
}
