package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// pageCountToEOF means every entry up to the end of the file belongs to
// the segment.
const pageCountToEOF = 0xffffffff

// Report describes the contents of a journal file.
type Report struct {
	Segments []Segment
}

// Segment is one header and the entries that follow it.
type Segment struct {
	Offset  int64
	Header  Header
	Entries []EntryReport
}

// EntryReport is one entry and its checksum status.
type EntryReport struct {
	Offset     int64
	PageNumber uint32
	Checksum   uint32
	Computed   uint32
}

// Valid reports whether the stored checksum matches the content.
func (e EntryReport) Valid() bool { return e.Checksum == e.Computed }

// Entries returns the number of entries across all segments.
func (r *Report) Entries() int {
	n := 0
	for _, s := range r.Segments {
		n += len(s.Entries)
	}
	return n
}

// Invalid returns entries whose checksum does not match.
func (r *Report) Invalid() []EntryReport {
	var out []EntryReport
	for _, s := range r.Segments {
		for _, e := range s.Entries {
			if !e.Valid() {
				out = append(out, e)
			}
		}
	}
	return out
}

// Verify walks every segment of a journal of the given size and recomputes
// each entry checksum.
//
// A journal whose first header is missing or zeroed returns ErrBadHeader.
// Later segments end the walk at the first invalid header.
func Verify(r io.ReaderAt, size int64) (*Report, error) {
	report := &Report{}
	var off int64
	for i := 0; off < size; i++ {
		seg, next, err := readSegment(r, off, size, i == 0)
		if errors.Is(err, ErrBadHeader) && i > 0 {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("journal segment(%d): %w", i, err)
		}
		report.Segments = append(report.Segments, seg)
		if next <= off {
			break
		}
		off = next
	}
	if len(report.Segments) == 0 {
		return nil, fmt.Errorf("%w: empty journal", ErrBadHeader)
	}
	return report, nil
}

func readSegment(r io.ReaderAt, off, size int64, first bool) (Segment, int64, error) {
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, off); err != nil {
		return Segment{}, 0, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return Segment{}, 0, err
	}
	if !validSize(h.SectorSize, minSectorSize, maxSectorSize) || !validSize(h.PageSize, minPageSize, maxPageSize) {
		return Segment{}, 0, fmt.Errorf("%w: sector size %d, page size %d", ErrBadHeader, h.SectorSize, h.PageSize)
	}

	seg := Segment{Offset: off, Header: h}
	entrySize := int64(h.PageSize) + entryOverhead
	pos := off + int64(h.SectorSize)

	remaining := int64(h.PageCount)
	if h.PageCount == pageCountToEOF || (first && h.PageCount == 0) {
		remaining = (size - pos) / entrySize
	}

	frame := make([]byte, entrySize)
	for ; remaining > 0 && pos+entrySize <= size; remaining-- {
		if _, err := r.ReadAt(frame, pos); err != nil {
			return Segment{}, 0, fmt.Errorf("read entry at %d: %w", pos, err)
		}
		page := frame[4 : entrySize-4]
		seg.Entries = append(seg.Entries, EntryReport{
			Offset:     pos,
			PageNumber: binary.BigEndian.Uint32(frame),
			Checksum:   binary.BigEndian.Uint32(frame[entrySize-4:]),
			Computed:   Checksum(h.Nonce, page),
		})
		pos += entrySize
	}

	return seg, nextMultipleOf(pos, int64(h.SectorSize)), nil
}

// nextMultipleOf rounds v up to a multiple of denom.
func nextMultipleOf(v, denom int64) int64 {
	if mod := v % denom; mod != 0 {
		return v + denom - mod
	}
	return v
}
