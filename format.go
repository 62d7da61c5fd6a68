package blockfs

import (
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/IgorBoyarshin/blockfs/internal/blockio"
	"github.com/IgorBoyarshin/blockfs/internal/freemap"
)

// DefaultTotalBlocks is a total device size, in blocks, that comfortably
// houses the default geometry (B=8, M=12, F=10) with room for a non-trivial
// data area: 1 header block, 36 descriptor-table blocks, and 65 blocks
// split between the bitmap and the data area (1 bitmap block covering the
// other 64 as data), for 102 blocks (816 bytes) total.
const DefaultTotalBlocks = 102

// validateGeometry checks that a (totalBlocks, B, M, F) combination leaves
// room for the header, the full descriptor table, and at least one data
// block, aggregating every violation with multierror the way the teacher's
// own format-time validators do for multi-field structures.
func validateGeometry(totalBlocks uint, blockSize, maxDescriptors, fanOut uint16) error {
	var result *multierror.Error

	if blockSize == 0 {
		result = multierror.Append(result, BadImage.WithMessage("block size must be > 0"))
	}
	if maxDescriptors == 0 {
		result = multierror.Append(result, BadImage.WithMessage("descriptor table must hold at least one record"))
	}
	if fanOut == 0 || fanOut%2 != 0 {
		result = multierror.Append(result, BadImage.WithMessage("fan-out must be a positive even number (F/2 directory pairs)"))
	}
	if result.ErrorOrNil() != nil {
		return result
	}

	hdr := headerBlocks(blockSize)
	fd := uint(maxDescriptors) * descriptorSpan(blockSize, fanOut)
	if totalBlocks <= hdr+fd+1 {
		result = multierror.Append(result, BadImage.WithMessage(
			"image has no room left for a free-block bitmap and data area"))
	}
	return result.ErrorOrNil()
}

// Format creates a fresh image at path with the given geometry: a
// superblock, an all-free bitmap, an Empty descriptor table except for
// index 0 (the root directory, pre-populated with "." and ".." self
// entries), and a zeroed data area.
func Format(path string, totalBlocks uint, blockSize, maxDescriptors, fanOut uint16) error {
	if err := validateGeometry(totalBlocks, blockSize, maxDescriptors, fanOut); err != nil {
		return err
	}

	dataAreaStart := deriveDataAreaStart(totalBlocks, blockSize, maxDescriptors, fanOut)
	sb := &superblock{
		blockSize:      blockSize,
		maxDescriptors: maxDescriptors,
		fanOut:         fanOut,
		dataAreaStart:  dataAreaStart,
	}

	f, err := os.Create(path)
	if err != nil {
		return BadImage.Wrap(err)
	}
	defer f.Close()

	if err := f.Truncate(int64(totalBlocks) * int64(blockSize)); err != nil {
		return BadImage.Wrap(err)
	}

	dev := blockio.New(f, uint(blockSize), totalBlocks)

	if err := dev.WriteBlocks(0, sb.encode()); err != nil {
		return BadImage.Wrap(err)
	}

	dataBlocks := totalBlocks - uint(dataAreaStart)
	bm := freemap.New(dataBlocks)
	if err := dev.WriteBlocks(sb.mapStart(), bm.Bytes(sb.mapBlocks()*uint(blockSize))); err != nil {
		return BadImage.Wrap(err)
	}

	img := &Image{file: f, dev: dev, bm: bm, sb: sb, cwd: RootDescriptorIndex}

	root := emptyDescriptor(fanOut)
	root.Type = TypeDirectory
	if err := writeRootDirectory(img, root); err != nil {
		return err
	}
	for i := uint32(1); uint(i) < uint(maxDescriptors); i++ {
		if err := img.writeDescriptor(i, emptyDescriptor(fanOut)); err != nil {
			return err
		}
	}
	return nil
}

// writeRootDirectory allocates the root directory's "." and ".." name
// blocks and persists descriptor 0. Root's ".." points to itself, per
// spec.md §3.
func writeRootDirectory(img *Image, root *descriptor) error {
	parentAddr, err := img.allocateNameBlock("..")
	if err != nil {
		return err
	}
	selfAddr, err := img.allocateNameBlock(".")
	if err != nil {
		return err
	}

	root.Blocks[0], root.Blocks[1] = parentAddr, uint16(RootDescriptorIndex)
	root.Blocks[2], root.Blocks[3] = selfAddr, uint16(RootDescriptorIndex)
	root.Size = 2
	root.NumLinks = 2

	return img.writeDescriptor(RootDescriptorIndex, root)
}
