package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Page codecs.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Stored values start with one codec byte.
const (
	codecRaw  byte = 0
	codecZstd byte = 1
)

// Encoder and decoder are safe for concurrent use and costly to build,
// so one of each is shared.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// pageCodec encodes page content for storage.
type pageCodec struct {
	compress bool
}

func newPageCodec(name string) (pageCodec, error) {
	switch name {
	case "", CompressionNone:
		return pageCodec{}, nil
	case CompressionZstd:
		return pageCodec{compress: true}, nil
	default:
		return pageCodec{}, fmt.Errorf("storage: unknown compression %q", name)
	}
}

func (c pageCodec) encode(page []byte) []byte {
	if c.compress {
		out := make([]byte, 1, 1+len(page)/2)
		out[0] = codecZstd
		return zstdEncoder.EncodeAll(page, out)
	}
	out := make([]byte, 1+len(page))
	out[0] = codecRaw
	copy(out[1:], page)
	return out
}

// decode accepts either codec regardless of configuration, so the
// compression setting can change over the life of a store.
func (c pageCodec) decode(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("storage: empty page value")
	}
	switch value[0] {
	case codecRaw:
		out := make([]byte, len(value)-1)
		copy(out, value[1:])
		return out, nil
	case codecZstd:
		out, err := zstdDecoder.DecodeAll(value[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("storage: decompress page: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("storage: unknown page codec %d", value[0])
	}
}
