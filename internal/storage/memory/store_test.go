package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yndnr/pagejournal/internal/storage"
)

func TestStore_GetPage(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.GetPage(ctx, "main.db", 0); !errors.Is(err, storage.ErrPageNotFound) {
		t.Errorf("GetPage on empty store = %v, want ErrPageNotFound", err)
	}

	page := []byte{1, 2, 3, 4}
	if err := s.ApplyBatch(ctx, "main.db", storage.PageBatch{Pages: map[uint32][]byte{0: page}}); err != nil {
		t.Fatal(err)
	}
	page[0] = 99 // caller mutation must not leak into the store

	got, err := s.GetPage(ctx, "main.db", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 1 {
		t.Errorf("stored page aliased caller buffer: %v", got)
	}
	got[1] = 99
	again, _ := s.GetPage(ctx, "main.db", 0)
	if again[1] != 2 {
		t.Errorf("returned page aliased stored page: %v", again)
	}
}

func TestStore_Truncate(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.ApplyBatch(ctx, "main.db", storage.PageBatch{Pages: map[uint32][]byte{0: {0}, 1: {1}, 2: {2}}})
	to := uint32(1)
	s.ApplyBatch(ctx, "main.db", storage.PageBatch{TruncateTo: &to, Pages: map[uint32][]byte{5: {5}}})

	count, _ := s.PageCount(ctx, "main.db")
	if count != 6 {
		t.Errorf("PageCount() = %d, want 6", count)
	}
	if _, err := s.GetPage(ctx, "main.db", 2); !errors.Is(err, storage.ErrPageNotFound) {
		t.Errorf("truncated page still present, got %v", err)
	}
	if page, err := s.GetPage(ctx, "main.db", 5); err != nil || page[0] != 5 {
		t.Errorf("page written after truncation = %v, %v", page, err)
	}
}

func TestStore_ScanAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.ApplyBatch(ctx, "a.db", storage.PageBatch{Pages: map[uint32][]byte{3: {3}, 1: {1}, 2: {2}}})
	s.ApplyBatch(ctx, "b.db", storage.PageBatch{Pages: map[uint32][]byte{0: {0}}})

	var seen []uint32
	s.ScanPages(ctx, "a.db", func(index uint32, _ []byte) bool {
		seen = append(seen, index)
		return len(seen) < 2
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("scan = %v, want [1 2]", seen)
	}

	if dbs := s.Databases(); len(dbs) != 2 || dbs[0] != "a.db" {
		t.Errorf("Databases() = %v", dbs)
	}
	s.DeleteDatabase(ctx, "a.db")
	if count, _ := s.PageCount(ctx, "a.db"); count != 0 {
		t.Errorf("PageCount() after delete = %d", count)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := uint32(0); i < 100; i++ {
				s.ApplyBatch(ctx, "main.db", storage.PageBatch{Pages: map[uint32][]byte{i: {byte(g)}}})
				s.GetPage(ctx, "main.db", i)
			}
		}(g)
	}
	wg.Wait()

	if count, _ := s.PageCount(ctx, "main.db"); count != 100 {
		t.Errorf("PageCount() = %d, want 100", count)
	}
}
