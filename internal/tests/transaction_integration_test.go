package tests

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/pagevfs"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/vfs"
)

const (
	pageSize   = 1024
	sectorSize = 512
	nonce      = 0x5eed5eed
	dbName     = "main.db"
)

// images returns a database image and the image after an UPDATE that
// rewrites some of its pages.
func images(t *testing.T) (before, after []byte) {
	t.Helper()
	path := filepath.Join(t.TempDir(), dbName)
	exec(t, path,
		fmt.Sprintf("PRAGMA page_size = %d", pageSize),
		"CREATE TABLE kv (k INTEGER PRIMARY KEY, v TEXT)",
		"WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i+1 FROM n WHERE i < 200) INSERT INTO kv SELECT i, printf('%0100d', i) FROM n",
	)
	before = readFile(t, path)
	exec(t, path, "UPDATE kv SET v = printf('%0100d', -k) WHERE k % 7 = 0")
	after = readFile(t, path)
	if len(before) != len(after) {
		t.Fatalf("update changed the file size: %d -> %d", len(before), len(after))
	}
	return before, after
}

func exec(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newStore(t *testing.T) *storage.BadgerEngine {
	t.Helper()
	cfg := storage.DefaultKVConfig(t.TempDir())
	cfg.Compression = storage.CompressionZstd
	eng, err := storage.NewBadgerEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBadgerEngine: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func loadImage(t *testing.T, store storage.PageStore, image []byte) {
	t.Helper()
	batch := storage.PageBatch{Pages: make(map[uint32][]byte)}
	for i := 0; i < len(image)/pageSize; i++ {
		batch.Pages[uint32(i)] = image[i*pageSize : (i+1)*pageSize]
	}
	if err := store.ApplyBatch(context.Background(), dbName, batch); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
}

func storedImage(t *testing.T, store storage.PageStore) []byte {
	t.Helper()
	var out []byte
	err := store.ScanPages(context.Background(), dbName, func(_ uint32, page []byte) bool {
		out = append(out, page...)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

// changedPages returns the numbers of pages that differ between images.
func changedPages(a, b []byte) []uint32 {
	var pgnos []uint32
	for i := 0; i < len(a)/pageSize; i++ {
		if !bytes.Equal(a[i*pageSize:(i+1)*pageSize], b[i*pageSize:(i+1)*pageSize]) {
			pgnos = append(pgnos, uint32(i+1))
		}
	}
	return pgnos
}

// writeTransaction journals every changed page and then writes the new
// content to the database file, the way the engine does before commit.
func writeTransaction(t *testing.T, ctx context.Context, db, jf vfs.File, before, after []byte) []uint32 {
	t.Helper()
	pgnos := changedPages(before, after)
	if len(pgnos) == 0 {
		t.Fatal("update changed no pages")
	}

	hdr := journal.Header{
		Nonce:       nonce,
		InitialSize: uint32(len(before) / pageSize),
		SectorSize:  sectorSize,
		PageSize:    pageSize,
	}
	if _, err := jf.WriteAt(ctx, hdr.AppendBinary(nil), 0); err != nil {
		t.Fatal(err)
	}

	page := make([]byte, pageSize)
	for slot, pgno := range pgnos {
		if _, err := db.ReadAt(ctx, page, int64(pgno-1)*pageSize); err != nil {
			t.Fatalf("read page %d: %v", pgno, err)
		}
		entry := journal.NewEntry(pgno, page, nonce).AppendBinary(nil)
		if _, err := jf.WriteAt(ctx, entry, sectorSize+int64(slot)*(pageSize+8)); err != nil {
			t.Fatal(err)
		}
	}

	for _, pgno := range pgnos {
		off := int64(pgno-1) * pageSize
		if _, err := db.WriteAt(ctx, after[off:off+pageSize], off); err != nil {
			t.Fatalf("write page %d: %v", pgno, err)
		}
	}
	return pgnos
}

func openPair(t *testing.T, ctx context.Context, v *pagevfs.VFS) (db, jf vfs.File) {
	t.Helper()
	db, err := v.Open(ctx, dbName, vfs.OpenMainDB|vfs.OpenReadWrite)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	jf, err = v.Open(ctx, dbName+journal.DefaultSuffix, vfs.OpenMainJournal|vfs.OpenReadWrite|vfs.OpenCreate)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	return db, jf
}

func TestTransaction_CommitByDeletingJournal(t *testing.T) {
	ctx := context.Background()
	before, after := images(t)
	store := newStore(t)
	loadImage(t, store, before)

	v := pagevfs.New(pagevfs.Config{SectorSize: sectorSize}, store, nil, nil)
	db, jf := openPair(t, ctx, v)
	writeTransaction(t, ctx, db, jf, before, after)

	if !bytes.Equal(storedImage(t, store), before) {
		t.Fatal("store changed before commit")
	}

	jf.Close(ctx)
	if err := v.Delete(ctx, dbName+journal.DefaultSuffix); err != nil {
		t.Fatalf("delete journal: %v", err)
	}
	if err := db.Sync(ctx, vfs.SyncFull); err != nil {
		t.Fatalf("sync: %v", err)
	}
	db.Close(ctx)

	got := storedImage(t, store)
	if !bytes.Equal(got, after) {
		t.Fatalf("store after commit differs from updated image in pages %v", changedPages(got, after))
	}

	path := filepath.Join(t.TempDir(), "committed.db")
	if err := os.WriteFile(path, got, 0o600); err != nil {
		t.Fatal(err)
	}
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer sdb.Close()
	var v7 string
	if err := sdb.QueryRow("SELECT v FROM kv WHERE k = 7").Scan(&v7); err != nil {
		t.Fatalf("query committed image: %v", err)
	}
	if v7[0] != '-' {
		t.Errorf("k=7 = %q, want the updated value", v7)
	}
}

func TestTransaction_RollbackFromJournal(t *testing.T) {
	ctx := context.Background()
	before, after := images(t)
	store := newStore(t)
	loadImage(t, store, before)

	v := pagevfs.New(pagevfs.Config{SectorSize: sectorSize}, store, nil, nil)
	db, jf := openPair(t, ctx, v)
	pgnos := writeTransaction(t, ctx, db, jf, before, after)

	size, err := jf.FileSize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(sectorSize + len(pgnos)*(pageSize+8)); size != want {
		t.Fatalf("journal size = %d, want %d", size, want)
	}

	// Play the journal back into the database.
	entry := make([]byte, pageSize+8)
	for slot := range pgnos {
		off := sectorSize + int64(slot)*(pageSize+8)
		if _, err := jf.ReadAt(ctx, entry, off); err != nil {
			t.Fatalf("read entry %d: %v", slot, err)
		}
		pgno := binary.BigEndian.Uint32(entry)
		page := entry[4 : 4+pageSize]
		if sum := binary.BigEndian.Uint32(entry[4+pageSize:]); sum != journal.Checksum(nonce, page) {
			t.Fatalf("entry %d checksum mismatch", slot)
		}
		if _, err := db.WriteAt(ctx, page, int64(pgno-1)*pageSize); err != nil {
			t.Fatal(err)
		}
	}

	// Zeroing the header finishes the rollback.
	if _, err := jf.WriteAt(ctx, make([]byte, journal.HeaderSize), 0); err != nil {
		t.Fatal(err)
	}
	jf.Close(ctx)
	db.Close(ctx)

	if got := storedImage(t, store); !bytes.Equal(got, before) {
		t.Fatalf("store after rollback differs from original in pages %v", changedPages(got, before))
	}
}

func TestTransaction_JournalVerifies(t *testing.T) {
	ctx := context.Background()
	before, after := images(t)
	store := newStore(t)
	loadImage(t, store, before)

	v := pagevfs.New(pagevfs.Config{SectorSize: sectorSize}, store, nil, nil)
	db, jf := openPair(t, ctx, v)
	defer db.Close(ctx)
	defer jf.Close(ctx)
	pgnos := writeTransaction(t, ctx, db, jf, before, after)

	size, _ := jf.FileSize(ctx)
	dump := make([]byte, size)
	if _, err := jf.ReadAt(ctx, dump[:sectorSize], 0); err != nil && !errors.Is(err, vfs.ErrShortRead) {
		t.Fatal(err)
	}
	for off := int64(sectorSize); off < size; off += pageSize + 8 {
		if _, err := jf.ReadAt(ctx, dump[off:off+pageSize+8], off); err != nil {
			t.Fatalf("read entry at %d: %v", off, err)
		}
	}

	report, err := journal.Verify(bytes.NewReader(dump), size)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Entries() != len(pgnos) || len(report.Invalid()) != 0 {
		t.Fatalf("report: %d entries, %d invalid; want %d valid", report.Entries(), len(report.Invalid()), len(pgnos))
	}
	for i, e := range report.Segments[0].Entries {
		if e.PageNumber != pgnos[i] {
			t.Errorf("entry %d pgno = %d, want %d", i, e.PageNumber, pgnos[i])
		}
	}
}
