// Package blockfs implements a small UNIX-style filesystem that lives
// entirely inside a single backing file treated as a block device: a fixed
// superblock/bitmap/descriptor-table/data-area layout, block allocation,
// path resolution with symlink loop prevention, and the usual file,
// directory, hard-link and symlink operations. See SPEC_FULL.md for the
// full requirements this package implements.
package blockfs

import (
	"os"

	"github.com/IgorBoyarshin/blockfs/internal/blockio"
	"github.com/IgorBoyarshin/blockfs/internal/freemap"
)

// openSlot is one entry of the process-wide open-file table (spec.md §3).
type openSlot struct {
	used       bool
	descriptor uint32
}

// Image is the process-wide state created by a successful Mount: the
// geometry from the superblock, the in-memory free-block bitmap, the
// open-file table, and the current working directory. Per spec.md §5 this
// is the only shared, mutable state in the system.
type Image struct {
	file *os.File
	dev  *blockio.Device
	bm   *freemap.Bitmap
	sb   *superblock

	cwd       uint32
	openFiles [OpenFileTableSize]openSlot
}

// Engine is the single mount point this module's public contract operates
// on. Design Notes (spec.md §9) call for replacing the source's implicit
// globals with fields of a mounted-image value threaded through every
// operation; Engine and its optional *Image are exactly that value.
type Engine struct {
	img *Image
}

// NewEngine returns an unmounted engine. It holds at most one mounted image
// at a time and can be mounted again after Umount.
func NewEngine() *Engine {
	return &Engine{}
}

// requireMounted returns the mounted image or NotMounted if nothing is
// currently mounted.
func (e *Engine) requireMounted() (*Image, error) {
	if e.img == nil {
		return nil, NotMounted
	}
	return e.img, nil
}

// Mount binds path as the backing image for subsequent operations. Only one
// image may be mounted at a time; mounting while already mounted fails with
// AlreadyMounted.
func (e *Engine) Mount(path string) error {
	if e.img != nil {
		return AlreadyMounted
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return BadImage.Wrap(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return BadImage.Wrap(err)
	}
	if info.Size() < 8 {
		f.Close()
		return BadImage.WithMessage("image is smaller than a superblock header")
	}

	header := make([]byte, 8)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return BadImage.Wrap(err)
	}
	sb, err := decodeSuperblock(header)
	if err != nil {
		f.Close()
		return err
	}
	if sb.blockSize == 0 {
		f.Close()
		return BadImage.WithMessage("block size recorded in superblock is 0")
	}

	totalBlocks := uint(info.Size()) / uint(sb.blockSize)
	dev := blockio.New(f, uint(sb.blockSize), totalBlocks)

	mapRaw, err := dev.ReadBlocks(sb.mapStart(), sb.mapBlocks())
	if err != nil {
		f.Close()
		return BadImage.Wrap(err)
	}
	dataBlocks := totalBlocks - uint(sb.dataAreaStart)
	bm, err := freemap.FromBytes(mapRaw, dataBlocks)
	if err != nil {
		f.Close()
		return BadImage.Wrap(err)
	}

	e.img = &Image{
		file: f,
		dev:  dev,
		bm:   bm,
		sb:   sb,
		cwd:  RootDescriptorIndex,
	}
	return nil
}

// Umount releases the mounted image. It is a no-op error if nothing is
// mounted.
func (e *Engine) Umount() error {
	img, err := e.requireMounted()
	if err != nil {
		return err
	}
	closeErr := img.file.Close()
	e.img = nil
	if closeErr != nil {
		return BadImage.Wrap(closeErr)
	}
	return nil
}

// flushBitmap writes the in-memory free-block bitmap's region back to disk.
// Every allocation or release must call this before the operation that
// triggered it returns success (spec.md §4.3: "No batching.").
func (img *Image) flushBitmap() error {
	regionSize := img.sb.mapBlocks() * uint(img.sb.blockSize)
	return img.dev.WriteBlocks(img.sb.mapStart(), img.bm.Bytes(regionSize))
}

// dataBlockOffset turns a data-area-relative block address into an absolute
// block index on the device.
func (img *Image) dataBlockOffset(addr uint16) uint {
	return uint(img.sb.dataAreaStart) + uint(addr)
}

// allocateDataBlock finds a free data-area block, marks it taken, flushes
// the bitmap, and returns its data-area-relative address. On failure no
// state is changed.
func (img *Image) allocateDataBlock() (uint16, error) {
	idx, ok := img.bm.FindFree()
	if !ok {
		return 0, NoFreeBlock
	}
	if err := img.bm.SetTaken(idx); err != nil {
		return 0, err
	}
	if err := img.flushBitmap(); err != nil {
		_ = img.bm.SetFree(idx)
		return 0, err
	}
	return uint16(idx), nil
}

// freeDataBlock marks a data-area-relative block address free again and
// flushes the bitmap.
func (img *Image) freeDataBlock(addr uint16) error {
	if err := img.bm.SetFree(uint(addr)); err != nil {
		return err
	}
	return img.flushBitmap()
}

// releaseAll frees every address in addrs, best-effort. Operations that
// acquire several blocks before they know the whole call will succeed use
// this to unwind what they already took once a later step fails (spec.md
// §4.10: "release already-acquired bitmap bits and abort").
func (img *Image) releaseAll(addrs ...uint16) {
	for _, addr := range addrs {
		_ = img.freeDataBlock(addr)
	}
}
