package benchmark

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/storage"
)

// BenchmarkChecksum benchmarks the sampled entry checksum.
func BenchmarkChecksum(b *testing.B) {
	runWithPageSizes(b, func(b *testing.B, pageSize int) {
		page := randomPage(rand.New(rand.NewPCG(7, 7)), pageSize)
		b.SetBytes(int64(pageSize))
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			journal.Checksum(uint32(i), page)
		}
	})
}

// BenchmarkJournalReadAt_Sequential reads each entry in three parts, the
// way the engine plays a journal back: number, page, checksum. Only the
// first part of each entry reaches the store.
func BenchmarkJournalReadAt_Sequential(b *testing.B) {
	runWithPageSizes(b, func(b *testing.B, pageSize int) {
		store := newMemoryStore()
		seed(b, store, pageSize)
		jf := openJournal(b, store, pageSize)
		ctx := context.Background()

		pgno, page, sum := make([]byte, 4), make([]byte, pageSize), make([]byte, 4)
		b.SetBytes(int64(pageSize + 8))
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			off := entryOffset(i%benchPages, pageSize)
			if _, err := jf.ReadAt(ctx, pgno, off); err != nil {
				b.Fatal(err)
			}
			if _, err := jf.ReadAt(ctx, page, off+4); err != nil {
				b.Fatal(err)
			}
			if _, err := jf.ReadAt(ctx, sum, off+4+int64(pageSize)); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkJournalReadAt_CacheHit rereads one entry.
func BenchmarkJournalReadAt_CacheHit(b *testing.B) {
	runWithPageSizes(b, func(b *testing.B, pageSize int) {
		store := newMemoryStore()
		seed(b, store, pageSize)
		jf := openJournal(b, store, pageSize)
		ctx := context.Background()

		buf := make([]byte, pageSize+8)
		off := entryOffset(3, pageSize)
		b.SetBytes(int64(len(buf)))
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := jf.ReadAt(ctx, buf, off); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkJournalReadAt_Badger reconstructs entries from a badger store.
func BenchmarkJournalReadAt_Badger(b *testing.B) {
	for _, codec := range []string{storage.CompressionNone, storage.CompressionZstd} {
		b.Run(codec, func(b *testing.B) {
			const pageSize = 4096
			store := newBadgerStore(b, codec)
			seed(b, store, pageSize)
			jf := openJournal(b, store, pageSize)
			ctx := context.Background()

			buf := make([]byte, pageSize+8)
			b.SetBytes(int64(len(buf)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := jf.ReadAt(ctx, buf, entryOffset(i%benchPages, pageSize)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
