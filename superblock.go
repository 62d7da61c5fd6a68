package blockfs

import (
	"encoding/binary"

	"github.com/noxer/bytewriter"
)

// superblock holds the four geometry fields recorded at format time. Once
// mounted these values are process-wide for the lifetime of the mount, per
// spec.md §3: everything above the block-I/O layer addresses memory in
// blocks derived from these four numbers, never in raw bytes.
type superblock struct {
	blockSize      uint16 // B
	maxDescriptors uint16 // M
	fanOut         uint16 // F
	dataAreaStart  uint16 // in blocks, absolute
}

// headerBlocks returns ⌈8/B⌉, the number of blocks the superblock itself
// occupies (four 16-bit little-endian fields, 8 bytes total).
func headerBlocks(blockSize uint16) uint {
	return ceilDiv(8, uint(blockSize))
}

// descriptorSpan returns ⌈(4 + 2·F)/B⌉, the number of blocks one descriptor
// record occupies.
func descriptorSpan(blockSize, fanOut uint16) uint {
	return ceilDiv(4+2*uint(fanOut), uint(blockSize))
}

func ceilDiv(numerator, denominator uint) uint {
	return (numerator + denominator - 1) / denominator
}

// encode serializes the superblock into exactly headerBlocks(B)*B bytes.
func (sb *superblock) encode() []byte {
	buf := make([]byte, int(headerBlocks(sb.blockSize))*int(sb.blockSize))
	writer := bytewriter.New(buf)
	binary.Write(writer, binary.LittleEndian, sb.blockSize)
	binary.Write(writer, binary.LittleEndian, sb.maxDescriptors)
	binary.Write(writer, binary.LittleEndian, sb.fanOut)
	binary.Write(writer, binary.LittleEndian, sb.dataAreaStart)
	return buf
}

// decodeSuperblock reads the four header fields out of raw header-region
// bytes. raw must be at least 8 bytes.
func decodeSuperblock(raw []byte) (*superblock, error) {
	if len(raw) < 8 {
		return nil, BadImage.WithMessage("image too small to hold a superblock")
	}
	return &superblock{
		blockSize:      binary.LittleEndian.Uint16(raw[0:2]),
		maxDescriptors: binary.LittleEndian.Uint16(raw[2:4]),
		fanOut:         binary.LittleEndian.Uint16(raw[4:6]),
		dataAreaStart:  binary.LittleEndian.Uint16(raw[6:8]),
	}, nil
}

// fdBlocks returns the number of blocks the whole descriptor table occupies:
// M · ⌈(4+2F)/B⌉.
func (sb *superblock) fdBlocks() uint {
	return uint(sb.maxDescriptors) * descriptorSpan(sb.blockSize, sb.fanOut)
}

// mapStart, fdsStart and mapBlocks are derived the way spec.md §6 describes:
// mapStart is right after the header, fdsStart is dataAreaStart minus the
// descriptor table's size, and mapBlocks fills the gap between them.
func (sb *superblock) mapStart() uint {
	return headerBlocks(sb.blockSize)
}

func (sb *superblock) fdsStart() uint {
	return uint(sb.dataAreaStart) - sb.fdBlocks()
}

func (sb *superblock) mapBlocks() uint {
	return sb.fdsStart() - sb.mapStart()
}

// deriveDataAreaStart computes the data-area-start field for a fresh image
// of totalBlocks blocks with the given geometry, following the region-size
// formula in spec.md §6: the smallest number of bitmap blocks k such that
// k·(8B+1) ≥ totalBlocks - headerBlocks - fdBlocks (each bitmap block
// covers 8B data blocks and occupies one block itself).
func deriveDataAreaStart(totalBlocks uint, blockSize, maxDescriptors, fanOut uint16) uint16 {
	hdr := headerBlocks(blockSize)
	fd := uint(maxDescriptors) * descriptorSpan(blockSize, fanOut)
	remaining := totalBlocks - hdr - fd

	coveragePerMapBlock := 8*uint(blockSize) + 1
	mapBlocks := ceilDiv(remaining, coveragePerMapBlock)

	return uint16(hdr + fd + mapBlocks)
}
