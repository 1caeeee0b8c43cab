package dbfile

import "encoding/binary"

const (
	MinPageSize = 512
	MaxPageSize = 65536

	// pageSizeOffset is where the page size is stored in page 1.
	pageSizeOffset = 16
)

// ValidPageSize reports whether n is a power of two in [512, 65536].
func ValidPageSize(n int64) bool {
	return n >= MinPageSize && n <= MaxPageSize && n&(n-1) == 0
}

// PageSizeOf reads the page size from the database header in page 1.
// It returns 0 if the header does not hold a valid size.
func PageSizeOf(page []byte) int64 {
	if len(page) < pageSizeOffset+2 {
		return 0
	}
	n := int64(binary.BigEndian.Uint16(page[pageSizeOffset:]))
	if n == 1 {
		n = MaxPageSize
	}
	if !ValidPageSize(n) {
		return 0
	}
	return n
}
