// File model contains the structs which match the direct structures of the volume.

package flatfat

const (
	KiB = 1024
	MiB = 1024 * KiB
)

// Geometry limits of a volume.
const (
	MinClusterSize = 8 * KiB
	MaxClusterSize = 16 * KiB
	MinVolumeSize  = 5 * MiB
	MaxVolumeSize  = 50 * MiB
)

const (
	headerSize   = 16
	dirEntrySize = 128
	fatEntrySize = 4
	nameSize     = 112

	// MaxNameLength leaves room for the terminating NUL.
	MaxNameLength = nameSize - 1
)

// Name markers stored in the first byte of a directory entry name.
const (
	slotFreeMarker      = 0x00
	slotTombstoneMarker = 0xFF
)

// Raw values of the allocation table.
const (
	rawFree       uint32 = 0x0000
	rawReserved   uint32 = 0xFFFE
	rawEndOfChain uint32 = 0xFFFF
)

// volumeHeader lives at offset 0 of the backing file.
type volumeHeader struct {
	ClusterSize uint32
	TotalSize   uint32
	AllocTable  uint32
	RootDir     uint32
}

// dirRecord is a single slot of the directory table.
type dirRecord struct {
	Name         [nameSize]byte
	StartCluster uint32
	Size         uint32
	Kind         uint32
	Created      uint32
}
