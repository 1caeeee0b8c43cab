package journal

import (
	"errors"

	"github.com/yndnr/pagejournal/internal/vfs"
)

var (
	// ErrDatabaseNotFound reports a journal opened without its database file.
	ErrDatabaseNotFound = errors.New("journal: no open database for journal")

	// ErrInvalidPageNumber reports page number 0 in the ledger.
	ErrInvalidPageNumber = errors.New("journal: invalid page number")

	// ErrBadHeader reports a journal header that cannot be parsed.
	ErrBadHeader = errors.New("journal: bad header")

	// ErrClosed reports use of a closed journal file.
	ErrClosed = vfs.NewError(vfs.ResultMisuse, "journal file closed")
)
