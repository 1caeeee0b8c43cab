package journal

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// dumpJournal reads f back the way a rollback would.
func dumpJournal(t *testing.T, f *File) []byte {
	t.Helper()
	ctx := context.Background()
	size, err := f.FileSize(ctx)
	if err != nil {
		t.Fatalf("FileSize() error = %v", err)
	}

	out := make([]byte, testSector)
	if _, err := f.ReadAt(ctx, out, 0); err != nil {
		t.Fatalf("ReadAt(header) error = %v", err)
	}
	for off := int64(testSector); off < size; off += testEntry {
		entry := make([]byte, testEntry)
		if _, err := f.ReadAt(ctx, entry, off); err != nil {
			t.Fatalf("ReadAt(%d) error = %v", off, err)
		}
		out = append(out, entry...)
	}
	return out
}

func segment(h Header, pgnos ...uint32) []byte {
	b := make([]byte, h.SectorSize)
	copy(b, h.AppendBinary(nil))
	for _, pgno := range pgnos {
		b = NewEntry(pgno, pageContent(pgno), h.Nonce).AppendBinary(b)
	}
	if rem := len(b) % int(h.SectorSize); rem != 0 {
		b = append(b, make([]byte, int(h.SectorSize)-rem)...)
	}
	return b
}

func TestVerify_ReconstructedJournal(t *testing.T) {
	f, _, _ := newFixture(t, 6)
	h := testHeader
	h.PageCount = 3
	writeHeader(t, f, h)
	journalPage(t, f, 0, 6)
	journalPage(t, f, 1, 2)
	journalPage(t, f, 2, 4)

	raw := dumpJournal(t, f)
	report, err := Verify(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(report.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(report.Segments))
	}
	if got := report.Segments[0].Header; got != h {
		t.Errorf("header = %+v, want %+v", got, h)
	}
	if report.Entries() != 3 || len(report.Invalid()) != 0 {
		t.Errorf("entries = %d, invalid = %d", report.Entries(), len(report.Invalid()))
	}
	for i, want := range []uint32{6, 2, 4} {
		if got := report.Segments[0].Entries[i].PageNumber; got != want {
			t.Errorf("entry %d page = %d, want %d", i, got, want)
		}
	}
}

func TestVerify_PageCountFromSize(t *testing.T) {
	h := testHeader
	h.PageCount = pageCountToEOF
	raw := segment(h, 1, 2)
	raw = raw[:testSector+2*testEntry]

	report, err := Verify(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if report.Entries() != 2 {
		t.Errorf("entries = %d, want 2", report.Entries())
	}
}

func TestVerify_MultipleSegments(t *testing.T) {
	h1 := testHeader
	h1.PageCount = 1
	h2 := testHeader
	h2.PageCount = 2
	h2.Nonce = 77
	raw := append(segment(h1, 3), segment(h2, 1, 5)...)

	report, err := Verify(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(report.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(report.Segments))
	}
	if report.Entries() != 3 || len(report.Invalid()) != 0 {
		t.Errorf("entries = %d, invalid = %d", report.Entries(), len(report.Invalid()))
	}
	if report.Segments[1].Offset%testSector != 0 {
		t.Errorf("second segment offset %d not sector aligned", report.Segments[1].Offset)
	}
}

func TestVerify_CorruptChecksum(t *testing.T) {
	h := testHeader
	h.PageCount = 2
	raw := segment(h, 1, 2)
	raw[testSector+testEntry+4+50]++

	report, err := Verify(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	invalid := report.Invalid()
	if len(invalid) != 0 {
		t.Fatalf("byte 50 of page 2 is unsampled, invalid = %d, want 0", len(invalid))
	}

	raw[testSector+testEntry+4+3896]++
	report, err = Verify(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	invalid = report.Invalid()
	if len(invalid) != 1 || invalid[0].PageNumber != 2 {
		t.Errorf("invalid = %+v, want page 2", invalid)
	}
}

func TestVerify_BadHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"zeroed", make([]byte, testSector)},
		{"zero page size", segment(Header{SectorSize: testSector})},
		{"huge page size", segment(Header{SectorSize: testSector, PageSize: 1 << 30})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify(bytes.NewReader(tt.raw), int64(len(tt.raw))); !errors.Is(err, ErrBadHeader) {
				t.Errorf("Verify() error = %v, want ErrBadHeader", err)
			}
		})
	}
}
