package storage

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// pageKeyPrefix namespaces page keys inside the KV engine.
const pageKeyPrefix = "p/"

// PagePrefix returns the key prefix shared by all pages of db.
// Layout: "p/" + db + 0x00.
func PagePrefix(db string) []byte {
	key := make([]byte, 0, len(pageKeyPrefix)+len(db)+1)
	key = append(key, pageKeyPrefix...)
	key = append(key, db...)
	return append(key, 0)
}

// PageKey returns the key of page index of db.
// The index is big-endian so keys of one database sort by index.
func PageKey(db string, index uint32) []byte {
	key := PagePrefix(db)
	return binary.BigEndian.AppendUint32(key, index)
}

// ParsePageKey splits a page key into database name and index.
func ParsePageKey(key []byte) (string, uint32, error) {
	if len(key) < len(pageKeyPrefix)+1+4 || !strings.HasPrefix(string(key), pageKeyPrefix) {
		return "", 0, fmt.Errorf("storage: malformed page key %q", key)
	}
	sep := len(key) - 5
	if key[sep] != 0 {
		return "", 0, fmt.Errorf("storage: malformed page key %q", key)
	}
	return string(key[len(pageKeyPrefix):sep]), binary.BigEndian.Uint32(key[sep+1:]), nil
}

// ValidateDatabaseName rejects names that cannot be embedded in a page key.
func ValidateDatabaseName(db string) error {
	if db == "" {
		return fmt.Errorf("storage: empty database name")
	}
	if strings.IndexByte(db, 0) >= 0 {
		return fmt.Errorf("storage: database name contains NUL")
	}
	return nil
}

const (
	stageKeyPrefix  = "s/"
	markerKeyPrefix = "c/"
)

// stageDatabasePrefix returns the prefix of every staged page of db.
// Layout: "s/" + db + 0x00 + commit id (8 bytes) + index (4 bytes).
func stageDatabasePrefix(db string) []byte {
	key := make([]byte, 0, len(stageKeyPrefix)+len(db)+1)
	key = append(key, stageKeyPrefix...)
	key = append(key, db...)
	return append(key, 0)
}

func stagePrefix(db string, id uint64) []byte {
	return binary.BigEndian.AppendUint64(stageDatabasePrefix(db), id)
}

func stageKey(db string, id uint64, index uint32) []byte {
	return binary.BigEndian.AppendUint32(stagePrefix(db, id), index)
}

// markerKey returns the key of the commit marker of db.
// Layout: "c/" + db + 0x00.
func markerKey(db string) []byte {
	key := make([]byte, 0, len(markerKeyPrefix)+len(db)+1)
	key = append(key, markerKeyPrefix...)
	key = append(key, db...)
	return append(key, 0)
}

func parseMarkerKey(key []byte) (string, error) {
	if len(key) < len(markerKeyPrefix)+2 || !strings.HasPrefix(string(key), markerKeyPrefix) || key[len(key)-1] != 0 {
		return "", fmt.Errorf("storage: malformed commit marker key %q", key)
	}
	return string(key[len(markerKeyPrefix) : len(key)-1]), nil
}
