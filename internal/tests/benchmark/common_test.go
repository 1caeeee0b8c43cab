package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/pagevfs"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/storage/memory"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// PageSizes are the database page sizes benchmarked.
var PageSizes = []int{1024, 4096, 65536}

const (
	benchDB     = "bench.db"
	benchPages  = 256
	benchSector = 512
	benchNonce  = 0xfeedface
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// randomPage returns a page of pseudo-random bytes.
func randomPage(r *rand.Rand, size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(r.Uint32())
	}
	return p
}

// databaseImage returns pages forming a database whose header declares
// pageSize.
func databaseImage(pageSize, pages int) map[uint32][]byte {
	r := rand.New(rand.NewPCG(1, uint64(pageSize)))
	out := make(map[uint32][]byte, pages)
	for i := 0; i < pages; i++ {
		out[uint32(i)] = randomPage(r, pageSize)
	}
	hdr := out[0]
	copy(hdr, "SQLite format 3\x00")
	ps := pageSize
	if ps == 65536 {
		ps = 1
	}
	hdr[16], hdr[17] = byte(ps>>8), byte(ps)
	return out
}

func seed(b *testing.B, store storage.PageStore, pageSize int) {
	b.Helper()
	err := store.ApplyBatch(context.Background(), benchDB, storage.PageBatch{Pages: databaseImage(pageSize, benchPages)})
	if err != nil {
		b.Fatalf("seed: %v", err)
	}
}

// openJournal opens the database and a journal holding entries for every
// page, and returns the journal.
func openJournal(b *testing.B, store storage.PageStore, pageSize int) vfs.File {
	b.Helper()
	ctx := context.Background()
	v := pagevfs.New(pagevfs.Config{SectorSize: benchSector}, store, discard, nil)

	db, err := v.Open(ctx, benchDB, vfs.OpenMainDB|vfs.OpenReadWrite)
	if err != nil {
		b.Fatalf("open database: %v", err)
	}
	b.Cleanup(func() { db.Close(ctx) })

	jf, err := v.Open(ctx, benchDB+journal.DefaultSuffix, vfs.OpenMainJournal|vfs.OpenReadWrite|vfs.OpenCreate)
	if err != nil {
		b.Fatalf("open journal: %v", err)
	}
	b.Cleanup(func() { jf.Close(ctx) })

	hdr := journal.Header{Nonce: benchNonce, SectorSize: benchSector, PageSize: uint32(pageSize)}
	if _, err := jf.WriteAt(ctx, hdr.AppendBinary(nil), 0); err != nil {
		b.Fatal(err)
	}
	pgno := make([]byte, 4)
	for slot := 0; slot < benchPages; slot++ {
		n := uint32(slot + 1)
		pgno[0], pgno[1], pgno[2], pgno[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
		if _, err := jf.WriteAt(ctx, pgno, entryOffset(slot, pageSize)); err != nil {
			b.Fatal(err)
		}
	}
	return jf
}

func entryOffset(slot, pageSize int) int64 {
	return benchSector + int64(slot)*int64(pageSize+8)
}

func newMemoryStore() *memory.Store {
	return memory.New()
}

func newBadgerStore(b *testing.B, compression string) *storage.BadgerEngine {
	b.Helper()
	cfg := storage.DefaultKVConfig(b.TempDir())
	cfg.Compression = compression
	cfg.Badger.SyncWrites = false
	eng, err := storage.NewBadgerEngine(cfg, discard)
	if err != nil {
		b.Fatalf("NewBadgerEngine: %v", err)
	}
	b.Cleanup(func() { eng.Close() })
	return eng
}

// runWithPageSizes runs benchFn once per page size.
func runWithPageSizes(b *testing.B, benchFn func(b *testing.B, pageSize int)) {
	for _, size := range PageSizes {
		b.Run(fmt.Sprintf("page_%d", size), func(b *testing.B) {
			benchFn(b, size)
		})
	}
}
