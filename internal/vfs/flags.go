package vfs

// OpenFlag is the set of flags passed to Open.
type OpenFlag uint32

const (
	OpenReadOnly      OpenFlag = 0x00000001
	OpenReadWrite     OpenFlag = 0x00000002
	OpenCreate        OpenFlag = 0x00000004
	OpenDeleteOnClose OpenFlag = 0x00000008
	OpenExclusive     OpenFlag = 0x00000010
	OpenMainDB        OpenFlag = 0x00000100
	OpenTempDB        OpenFlag = 0x00000200
	OpenTransientDB   OpenFlag = 0x00000400
	OpenMainJournal   OpenFlag = 0x00000800
	OpenTempJournal   OpenFlag = 0x00001000
	OpenSubJournal    OpenFlag = 0x00002000
	OpenSuperJournal  OpenFlag = 0x00004000
	OpenWAL           OpenFlag = 0x00080000
)

// Has reports whether all bits of want are set.
func (f OpenFlag) Has(want OpenFlag) bool { return f&want == want }

// SyncFlag is the set of flags passed to Sync.
type SyncFlag uint32

const (
	SyncNormal   SyncFlag = 0x00002
	SyncFull     SyncFlag = 0x00003
	SyncDataOnly SyncFlag = 0x00010
)

// DeviceCharacteristic is a bit set describing guarantees of the
// underlying storage.
type DeviceCharacteristic uint32

const (
	IOCapAtomic              DeviceCharacteristic = 0x00000001
	IOCapAtomic512           DeviceCharacteristic = 0x00000002
	IOCapAtomic4K            DeviceCharacteristic = 0x00000010
	IOCapSafeAppend          DeviceCharacteristic = 0x00000200
	IOCapSequential          DeviceCharacteristic = 0x00000400
	IOCapUndeletableWhenOpen DeviceCharacteristic = 0x00000800
	IOCapPowersafeOverwrite  DeviceCharacteristic = 0x00001000
	IOCapImmutable           DeviceCharacteristic = 0x00002000
	IOCapBatchAtomic         DeviceCharacteristic = 0x00004000
)

// Has reports whether all bits of want are set.
func (d DeviceCharacteristic) Has(want DeviceCharacteristic) bool { return d&want == want }

// LockLevel is a file lock level.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockShared
	LockReserved
	LockPending
	LockExclusive
)

// AccessFlag selects the question asked by Access.
type AccessFlag int

const (
	AccessExists AccessFlag = iota
	AccessReadWrite
	AccessRead
)
