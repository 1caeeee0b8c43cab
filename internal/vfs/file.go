package vfs

import "context"

// File is the capability set the engine drives for every open file.
//
// ReadAt follows the short read convention: when fewer than len(p) bytes
// are available the remainder of p is zero-filled and ErrShortRead is
// returned together with the count of valid bytes.
type File interface {
	Close(ctx context.Context) error
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	WriteAt(ctx context.Context, p []byte, off int64) (int, error)
	Truncate(ctx context.Context, size int64) error
	Sync(ctx context.Context, flags SyncFlag) error
	FileSize(ctx context.Context) (int64, error)

	Lock(level LockLevel) error
	Unlock(level LockLevel) error
	CheckReservedLock() (bool, error)

	SectorSize() int
	DeviceCharacteristics() DeviceCharacteristic
}

// DefaultSectorSize is the sector size reported by Base.
const DefaultSectorSize = 512

// Base supplies default behaviors for the optional parts of File.
// Concrete files embed it and override what they need.
//
// Locking is a no-op: a page-store file is driven by a single connection.
type Base struct{}

// Sync reports success without doing anything.
func (Base) Sync(context.Context, SyncFlag) error { return nil }

// Lock accepts every lock request.
func (Base) Lock(LockLevel) error { return nil }

// Unlock accepts every unlock request.
func (Base) Unlock(LockLevel) error { return nil }

// CheckReservedLock reports that no other connection holds a reserved lock.
func (Base) CheckReservedLock() (bool, error) { return false, nil }

// SectorSize returns DefaultSectorSize.
func (Base) SectorSize() int { return DefaultSectorSize }

// DeviceCharacteristics asserts no capabilities.
func (Base) DeviceCharacteristics() DeviceCharacteristic { return 0 }

// ZeroFill clears p and returns it, used to honor the short read convention.
func ZeroFill(p []byte) []byte {
	clear(p)
	return p
}
