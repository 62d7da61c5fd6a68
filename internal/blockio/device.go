// Package blockio provides the block-addressed I/O layer over a backing
// image: every higher layer of the filesystem reads and writes whole
// blocks at integer indices, never raw byte offsets.
package blockio

import (
	"fmt"
	"io"
)

// Device is a block-addressed view of a seekable stream. BlockSize and
// TotalBlocks are fixed for the lifetime of the device; they come from the
// superblock at mount time.
type Device struct {
	BlockSize   uint
	TotalBlocks uint
	stream      io.ReadWriteSeeker
}

// New wraps stream as a block device with the given geometry. totalBlocks
// may be 0 if it isn't known yet (e.g. before the superblock has been
// parsed); callers must set it with SetTotalBlocks before issuing I/O.
func New(stream io.ReadWriteSeeker, blockSize uint, totalBlocks uint) *Device {
	return &Device{
		BlockSize:   blockSize,
		TotalBlocks: totalBlocks,
		stream:      stream,
	}
}

// SetTotalBlocks updates the device's known extent. Used once the superblock
// has been decoded and the true block count is known.
func (d *Device) SetTotalBlocks(totalBlocks uint) {
	d.TotalBlocks = totalBlocks
}

func (d *Device) offsetOf(index uint) int64 {
	return int64(index) * int64(d.BlockSize)
}

func (d *Device) checkRange(start uint, count uint) error {
	if count == 0 {
		return fmt.Errorf("block range: count must be > 0")
	}
	if start+count > d.TotalBlocks {
		return fmt.Errorf(
			"block range [%d, %d) out of bounds [0, %d)",
			start, start+count, d.TotalBlocks,
		)
	}
	return nil
}

// ReadBlock reads exactly one block at index i.
func (d *Device) ReadBlock(i uint) ([]byte, error) {
	return d.ReadBlocks(i, 1)
}

// ReadBlocks reads count contiguous blocks starting at index start.
func (d *Device) ReadBlocks(start uint, count uint) ([]byte, error) {
	if err := d.checkRange(start, count); err != nil {
		return nil, err
	}

	if _, err := d.stream.Seek(d.offsetOf(start), io.SeekStart); err != nil {
		return nil, err
	}

	buffer := make([]byte, count*d.BlockSize)
	if _, err := io.ReadFull(d.stream, buffer); err != nil {
		return nil, err
	}
	return buffer, nil
}

// WriteBlock writes exactly one block at index i. data must be BlockSize
// bytes long.
func (d *Device) WriteBlock(i uint, data []byte) error {
	return d.WriteBlocks(i, data)
}

// WriteBlocks writes data, which must be an integer multiple of BlockSize,
// starting at block index start.
func (d *Device) WriteBlocks(start uint, data []byte) error {
	if len(data)%int(d.BlockSize) != 0 {
		return fmt.Errorf(
			"data length %d is not a multiple of block size %d",
			len(data), d.BlockSize,
		)
	}
	count := uint(len(data)) / d.BlockSize
	if err := d.checkRange(start, count); err != nil {
		return err
	}

	if _, err := d.stream.Seek(d.offsetOf(start), io.SeekStart); err != nil {
		return err
	}
	_, err := d.stream.Write(data)
	return err
}
