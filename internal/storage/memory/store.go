package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/pkg/cmap"
)

// Store keeps pages in memory.
type Store struct {
	dbs *cmap.Map[string, *pageSet]
}

type pageSet struct {
	mu    sync.RWMutex
	pages map[uint32][]byte
}

var _ storage.PageStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{dbs: cmap.New[string, *pageSet]()}
}

func (s *Store) set(db string) *pageSet {
	set, _ := s.dbs.GetOrSet(db, &pageSet{pages: make(map[uint32][]byte)})
	return set
}

// GetPage returns a copy of page index of db.
func (s *Store) GetPage(ctx context.Context, db string, index uint32) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set, ok := s.dbs.Get(db)
	if !ok {
		return nil, storage.ErrPageNotFound
	}

	set.mu.RLock()
	defer set.mu.RUnlock()
	page, ok := set.pages[index]
	if !ok {
		return nil, storage.ErrPageNotFound
	}
	return append([]byte(nil), page...), nil
}

// ApplyBatch applies the batch under the database lock.
func (s *Store) ApplyBatch(ctx context.Context, db string, batch storage.PageBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	set := s.set(db)

	set.mu.Lock()
	defer set.mu.Unlock()
	if batch.TruncateTo != nil {
		for index := range set.pages {
			if index >= *batch.TruncateTo {
				delete(set.pages, index)
			}
		}
	}
	for index, page := range batch.Pages {
		set.pages[index] = append([]byte(nil), page...)
	}
	return nil
}

// PageCount returns the highest stored index of db plus one.
func (s *Store) PageCount(_ context.Context, db string) (uint32, error) {
	set, ok := s.dbs.Get(db)
	if !ok {
		return 0, nil
	}

	set.mu.RLock()
	defer set.mu.RUnlock()
	var count uint32
	for index := range set.pages {
		if index+1 > count {
			count = index + 1
		}
	}
	return count, nil
}

// ScanPages visits pages of db in index order.
func (s *Store) ScanPages(ctx context.Context, db string, fn func(index uint32, page []byte) bool) error {
	set, ok := s.dbs.Get(db)
	if !ok {
		return nil
	}

	set.mu.RLock()
	indexes := make([]uint32, 0, len(set.pages))
	for index := range set.pages {
		indexes = append(indexes, index)
	}
	set.mu.RUnlock()
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	for _, index := range indexes {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.GetPage(ctx, db, index)
		if err != nil {
			// Removed concurrently.
			continue
		}
		if !fn(index, page) {
			return nil
		}
	}
	return nil
}

// DeleteDatabase removes all pages of db.
func (s *Store) DeleteDatabase(_ context.Context, db string) error {
	s.dbs.Delete(db)
	return nil
}

// Databases returns the names of databases holding pages.
func (s *Store) Databases() []string {
	names := s.dbs.Keys()
	sort.Strings(names)
	return names
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
