// Package freemap implements the on-disk free-block bitmap: one bit per
// data-area block, bit = 1 meaning free. It mirrors the allocation bitmap
// the teacher repo builds with github.com/boljen/go-bitmap, but adds the
// region serialization the teacher's in-memory-only Allocator didn't need.
package freemap

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
)

// Bitmap tracks which of the data area's blocks are free. Bit index i
// corresponds to data-area block i, not to an absolute block number on the
// image.
type Bitmap struct {
	bits  bitmap.Bitmap
	total uint
}

// bytesNeeded returns the number of bytes required to hold one bit per
// block, rounded up.
func bytesNeeded(totalBlocks uint) uint {
	return (totalBlocks + 7) / 8
}

// New creates a fresh bitmap with every block marked free. go-bitmap's zero
// value clears every bit, which is the opposite of this spec's convention
// (bit = 1 means free), so every bit is flipped on after allocation.
func New(totalBlocks uint) *Bitmap {
	bits := bitmap.New(int(totalBlocks))
	for i := 0; i < int(totalBlocks); i++ {
		bits.Set(i, true)
	}
	return &Bitmap{
		bits:  bits,
		total: totalBlocks,
	}
}

// FromBytes reconstructs a bitmap from raw region bytes read off the image
// (see Bytes for the inverse). raw must be at least bytesNeeded(totalBlocks)
// bytes; any trailing bytes are ignored.
func FromBytes(raw []byte, totalBlocks uint) (*Bitmap, error) {
	need := bytesNeeded(totalBlocks)
	if uint(len(raw)) < need {
		return nil, fmt.Errorf(
			"free-block bitmap region too small: need %d bytes, got %d",
			need, len(raw),
		)
	}
	return &Bitmap{
		bits:  bitmap.Bitmap(append([]byte(nil), raw[:need]...)),
		total: totalBlocks,
	}, nil
}

// RegionSizeBytes returns the minimum number of bytes that hold one bit per
// block. The on-disk region is a whole number of blocks and is usually
// larger (see Bytes).
func (b *Bitmap) RegionSizeBytes() uint {
	return bytesNeeded(b.total)
}

func (b *Bitmap) checkIndex(i uint) error {
	if i >= b.total {
		return fmt.Errorf("block index %d out of range [0, %d)", i, b.total)
	}
	return nil
}

// IsFree reports whether data-area block i is unallocated.
func (b *Bitmap) IsFree(i uint) (bool, error) {
	if err := b.checkIndex(i); err != nil {
		return false, err
	}
	return b.bits.Get(int(i)), nil
}

// SetTaken marks data-area block i as allocated.
func (b *Bitmap) SetTaken(i uint) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.bits.Set(int(i), false)
	return nil
}

// SetFree marks data-area block i as unallocated.
func (b *Bitmap) SetFree(i uint) error {
	if err := b.checkIndex(i); err != nil {
		return err
	}
	b.bits.Set(int(i), true)
	return nil
}

// FindFree returns the lowest-index free block, or ok=false if the bitmap is
// saturated.
func (b *Bitmap) FindFree() (index uint, ok bool) {
	for i := uint(0); i < b.total; i++ {
		if b.bits.Get(int(i)) {
			return i, true
		}
	}
	return 0, false
}

// Bytes serializes the bitmap to its on-disk form: one bit per block in
// little-endian bit order, bit j of byte k corresponding to block 8k+j,
// padded with zero bytes up to regionSizeBytes. The bitmap region on disk
// is a whole number of blocks (mapBlocks()*B), which is generally larger
// than bytesNeeded(total) — every block-I/O write must be block-aligned
// (blockio.Device rejects anything else), so the padding is mandatory, not
// cosmetic.
func (b *Bitmap) Bytes(regionSizeBytes uint) []byte {
	raw := b.bits.Data(false)
	if uint(len(raw)) >= regionSizeBytes {
		return raw[:regionSizeBytes]
	}
	padded := make([]byte, regionSizeBytes)
	copy(padded, raw)
	return padded
}
