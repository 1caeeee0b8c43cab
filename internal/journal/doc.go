// Package journal implements a rollback journal file that stores no page
// content.
//
// A rollback journal is a header sector followed by one entry per page
// the transaction is about to modify:
//
//	+---------------------------+  0
//	| header (sector size bytes)|
//	+---------------------------+  sectorSize
//	| pgno | page content | sum |  entry 0 (pageSize + 8 bytes)
//	+---------------------------+
//	| pgno | page content | sum |  entry 1
//	+---------------------------+
//
// The pages live in a page store that still holds their pre-transaction
// content while the journal is live, because the database file buffers
// its writes until commit. The journal therefore keeps only the header
// bytes and the page number of every entry slot, drops the content and
// checksum the engine writes, and rebuilds whole entries from the page
// store when the engine reads them back during rollback.
//
// Header fields consulted (big-endian uint32):
//
//	offset 12  checksum nonce
//	offset 20  sector size
//	offset 24  page size
//
// Writing a zeroed header (first byte 0) at offset 0 is how the engine
// commits in exclusive locking mode; the journal forwards that as a commit
// notification to its database file.
package journal
