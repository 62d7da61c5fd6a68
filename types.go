package blockfs

// FileType is the descriptor record's type tag.
type FileType uint8

const (
	TypeEmpty FileType = iota
	TypeRegular
	TypeDirectory
	TypeSymlink
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	default:
		return "empty"
	}
}

const (
	// UnusedAddr marks an unused block-address slot in a descriptor's block
	// list, or a free (name-block, child-index) directory pair.
	UnusedAddr = uint16(0xFFFF)

	// RootDescriptorIndex is always the root directory.
	RootDescriptorIndex = uint32(0)

	// DefaultBlockSize, DefaultMaxDescriptors, and DefaultFanOut are the
	// geometry a freshly formatted image gets when the caller doesn't
	// specify one explicitly.
	DefaultBlockSize      = uint16(8)
	DefaultMaxDescriptors = uint16(12)
	DefaultFanOut         = uint16(10)

	// OpenFileTableSize is the fixed capacity K of the process-wide
	// open-file table.
	OpenFileTableSize = 4

	// SymlinkHopLimit is the maximum number of symlink indirections path
	// resolution will follow before failing with SymlinkLoop.
	SymlinkHopLimit = 4
)

// Stat is the information filestat() reports about a descriptor.
type Stat struct {
	Index     uint32
	Type      FileType
	Size      uint16
	NumLinks  uint8
	NumBlocks int
}
