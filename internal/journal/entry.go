package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
)

// entryOverhead is the page number prefix plus the checksum suffix.
const entryOverhead = 8

// Entry is one journal entry.
type Entry struct {
	PageNumber uint32
	Page       []byte
	Checksum   uint32
}

// NewEntry builds the entry for page with its checksum.
func NewEntry(pgno uint32, page []byte, nonce uint32) Entry {
	return Entry{PageNumber: pgno, Page: page, Checksum: Checksum(nonce, page)}
}

// Size returns the encoded length.
func (e Entry) Size() int {
	return len(e.Page) + entryOverhead
}

// AppendBinary appends the wire form: BE page number, content, BE checksum.
func (e Entry) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, e.PageNumber)
	b = append(b, e.Page...)
	return binary.BigEndian.AppendUint32(b, e.Checksum)
}

// entryKey identifies a reconstructed entry.
//
// The nonce and page size are part of the key so a later journal segment
// never sees an entry checksummed for an earlier one.
type entryKey struct {
	pgno     uint32
	nonce    uint32
	pageSize int64
}

// reconstructor rebuilds entries from the page store and keeps the most
// recent one.
type reconstructor struct {
	db      string
	store   storage.PageReader
	metrics *metric.Metrics

	mu     sync.Mutex
	key    entryKey
	cached []byte
}

// entry returns the encoded entry for key, fetching the page on a miss.
//
// The lock is held across check, fetch and install. The returned slice is
// never mutated afterwards, so callers may copy from it unlocked.
func (r *reconstructor) entry(ctx context.Context, key entryKey) ([]byte, error) {
	if key.pgno == 0 {
		return nil, fmt.Errorf("%w: 0", ErrInvalidPageNumber)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.key == key {
		r.metrics.CacheHit()
		return r.cached, nil
	}

	start := time.Now()
	page, err := r.store.GetPage(ctx, r.db, key.pgno-1)
	r.metrics.ObserveFetch(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	content := make([]byte, key.pageSize)
	copy(content, page)

	encoded := NewEntry(key.pgno, content, key.nonce).AppendBinary(make([]byte, 0, key.pageSize+entryOverhead))
	r.key = key
	r.cached = encoded
	return encoded, nil
}
