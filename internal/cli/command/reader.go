package command

import (
	"context"
	"errors"
	"io"

	"github.com/yndnr/pagejournal/internal/vfs"
)

// fileReader adapts a vfs.File to io.ReaderAt.
type fileReader struct {
	ctx context.Context
	f   vfs.File
}

func (r fileReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.f.ReadAt(r.ctx, p, off)
	if errors.Is(err, vfs.ErrShortRead) {
		return n, io.EOF
	}
	return n, err
}

// readZeroFilled reads len(p) bytes at off. Bytes past the end of the
// file read as zeros.
func readZeroFilled(ctx context.Context, f vfs.File, p []byte, off int64) error {
	_, err := f.ReadAt(ctx, p, off)
	if errors.Is(err, vfs.ErrShortRead) {
		return nil
	}
	return err
}
