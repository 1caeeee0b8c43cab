package journal

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic opens every rollback journal header.
var Magic = [8]byte{0xd9, 0xd5, 0x05, 0xf9, 0x20, 0xa1, 0x63, 0xd7}

// Header field offsets.
const (
	offsetPageCount   = 8
	offsetNonce       = 12
	offsetInitialSize = 16
	offsetSectorSize  = 20
	offsetPageSize    = 24

	// HeaderSize is the length of the meaningful header prefix.
	HeaderSize = 28
)

// unset marks a header field that has not been parsed yet.
const unset = -1

// Bounds on the layout fields a header may declare.
const (
	minSectorSize = 32
	maxSectorSize = 1 << 16
	minPageSize   = 512
	maxPageSize   = 1 << 16
)

// Header is the decoded fixed part of a journal header.
type Header struct {
	// PageCount is the number of entries in the segment.
	// 0xffffffff means the count is derived from the file size.
	PageCount uint32

	// Nonce seeds every entry checksum.
	Nonce uint32

	// InitialSize is the database size in pages before the transaction.
	InitialSize uint32

	SectorSize uint32
	PageSize   uint32
}

// AppendBinary appends the encoded header to b.
func (h Header) AppendBinary(b []byte) []byte {
	b = append(b, Magic[:]...)
	b = binary.BigEndian.AppendUint32(b, h.PageCount)
	b = binary.BigEndian.AppendUint32(b, h.Nonce)
	b = binary.BigEndian.AppendUint32(b, h.InitialSize)
	b = binary.BigEndian.AppendUint32(b, h.SectorSize)
	b = binary.BigEndian.AppendUint32(b, h.PageSize)
	return b
}

// ParseHeader decodes the fixed part of a journal header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes, need %d", ErrBadHeader, len(b), HeaderSize)
	}
	if !bytes.Equal(b[:len(Magic)], Magic[:]) {
		return Header{}, fmt.Errorf("%w: magic mismatch", ErrBadHeader)
	}
	return Header{
		PageCount:   binary.BigEndian.Uint32(b[offsetPageCount:]),
		Nonce:       binary.BigEndian.Uint32(b[offsetNonce:]),
		InitialSize: binary.BigEndian.Uint32(b[offsetInitialSize:]),
		SectorSize:  binary.BigEndian.Uint32(b[offsetSectorSize:]),
		PageSize:    binary.BigEndian.Uint32(b[offsetPageSize:]),
	}, nil
}

// headerBuffer holds the raw header bytes written by the engine and the
// fields parsed from them.
type headerBuffer struct {
	buf        []byte
	nonce      uint32
	sectorSize int64
	pageSize   int64
}

func newHeaderBuffer() headerBuffer {
	return headerBuffer{sectorSize: unset, pageSize: unset}
}

// parsed reports whether the layout fields are known.
func (h *headerBuffer) parsed() bool {
	return h.sectorSize != unset
}

// contains reports whether off falls inside the header region.
// Every offset does until the sector size is known.
func (h *headerBuffer) contains(off int64) bool {
	return !h.parsed() || off < h.sectorSize
}

func (h *headerBuffer) entrySize() int64 {
	return h.pageSize + entryOverhead
}

// write copies p at off, growing the buffer as needed. The buffer never
// grows past the largest sector size.
func (h *headerBuffer) write(p []byte, off int64) error {
	if end := off + int64(len(p)); end > maxSectorSize {
		return fmt.Errorf("%w: header write ends at %d, past %d", ErrBadHeader, end, maxSectorSize)
	}
	if end := off + int64(len(p)); end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[off:], p)
	return nil
}

// parse extracts nonce, sector size and page size from the buffer.
//
// A zero sector size keeps the previous value. A zero page size takes the
// sector size. Fields the buffer does not fully cover read as zero. A
// sector size outside 32..65536 or a page size outside 512..65536, or
// either not a power of two, fails with ErrBadHeader and leaves the
// previous fields in place.
func (h *headerBuffer) parse() error {
	sectorSize := h.sectorSize
	if v := h.field(offsetSectorSize); v != 0 {
		if !validSize(v, minSectorSize, maxSectorSize) {
			return fmt.Errorf("%w: sector size %d", ErrBadHeader, v)
		}
		sectorSize = int64(v)
	}
	pageSize := sectorSize
	if v := h.field(offsetPageSize); v != 0 {
		if !validSize(v, minPageSize, maxPageSize) {
			return fmt.Errorf("%w: page size %d", ErrBadHeader, v)
		}
		pageSize = int64(v)
	}
	h.nonce = h.field(offsetNonce)
	h.sectorSize = sectorSize
	h.pageSize = pageSize
	return nil
}

func validSize(v, lo, hi uint32) bool {
	return v >= lo && v <= hi && v&(v-1) == 0
}

func (h *headerBuffer) field(off int) uint32 {
	if len(h.buf) < off+4 {
		return 0
	}
	return binary.BigEndian.Uint32(h.buf[off:])
}

// truncate shrinks the buffer to size.
func (h *headerBuffer) truncate(size int64) {
	if size > int64(len(h.buf)) {
		panic(fmt.Sprintf("journal: truncate to %d beyond header length %d", size, len(h.buf)))
	}
	h.buf = h.buf[:size]
}
